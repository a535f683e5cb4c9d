package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/walrusagents/blobflow/pkg/blobkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{name: "none", in: nil, want: nil},
		{name: "pairs", in: []string{"a=1", " b = two "}, want: map[string]string{"a": "1", "b": "two"}},
		{name: "empty value", in: []string{"a="}, want: map[string]string{"a": ""}},
		{name: "value with equals", in: []string{"q=x=y"}, want: map[string]string{"q": "x=y"}},
		{name: "missing separator", in: []string{"a"}, wantErr: true},
		{name: "empty key", in: []string{"=v"}, wantErr: true},
		{name: "duplicate", in: []string{"a=1", "a=2"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTags(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPayloadFromBytes(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		data    []byte
		kind    string
		want    blobkit.Kind
		wantErr bool
	}{
		{name: "auto json by extension", file: "meta.JSON", data: []byte(`{"a":1}`), kind: "auto", want: blobkit.KindJSON},
		{name: "auto text", file: "notes.txt", data: []byte("hello"), kind: "", want: blobkit.KindText},
		{name: "auto binary", file: "img.bin", data: []byte{0xff, 0xfe, 0x00}, kind: "auto", want: blobkit.KindBinary},
		{name: "forced binary", file: "notes.txt", data: []byte("hello"), kind: "binary", want: blobkit.KindBinary},
		{name: "forced json", file: "x", data: []byte(`[1]`), kind: "json", want: blobkit.KindJSON},
		{name: "text rejects invalid utf8", file: "x", data: []byte{0xff}, kind: "text", wantErr: true},
		{name: "unknown kind", file: "x", data: []byte("a"), kind: "yaml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := payloadFromBytes(tt.file, tt.data, tt.kind)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Kind())
		})
	}
}

func TestNormalizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("BLOBFLOW_TEST_DIR", "/tmp/blobflow")
	assert.Equal(t, filepath.Join(home, ".blobflow", "config.yml"), NormalizePath("~/.blobflow/config.yml"))
	assert.Equal(t, "/tmp/blobflow/x.db", NormalizePath("$BLOBFLOW_TEST_DIR/x.db"))
	assert.Equal(t, "a/b", NormalizePath("a//b/"))
}

func TestProcessConfigPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, defaultConfigFileName), processConfigPath(dir))

	file := filepath.Join(dir, "custom.yml")
	assert.Equal(t, file, processConfigPath(file))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"http://a", "http://b"}, splitList(" http://a, ,http://b "))
	assert.Nil(t, splitList(" , "))
}

func TestValidateEpochs(t *testing.T) {
	assert.NoError(t, validateEpochs("5"))
	assert.Error(t, validateEpochs("0"))
	assert.Error(t, validateEpochs("abc"))
}

func TestRenderPayload(t *testing.T) {
	assert.Equal(t, "hi", renderPayload([]byte("hi")))
	assert.Equal(t, "base64:/w==", renderPayload([]byte{0xff}))
}
