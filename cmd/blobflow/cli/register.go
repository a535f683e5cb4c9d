package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/walrusagents/blobflow/pkg/blobkit"
	"github.com/walrusagents/blobflow/sdk/action"
	"github.com/walrusagents/blobflow/sdk/adapters/signer"
	"github.com/walrusagents/blobflow/sdk/event"
	"github.com/walrusagents/blobflow/sdk/flow"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

var (
	regIdentifier string
	regTags       []string
	regKind       string
	regYes        bool
	regRetries    int
)

var registerCmd = &cobra.Command{
	Use:   "register <file>",
	Short: "Register a file on the storage network",
	Long: `Encode the file, sign and submit the register transaction, upload the
slivers, then sign and submit the certify transaction.

Each signature is confirmed interactively unless --yes is given. If the
storage network cannot be reached the metadata is saved to the local fallback
store instead and its key is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&regIdentifier, "identifier", "", "identifier for the content (default: file name)")
	registerCmd.Flags().StringArrayVar(&regTags, "tag", nil, "tag as key=value (repeatable)")
	registerCmd.Flags().StringVar(&regKind, "kind", "auto", "payload kind: auto, json, text, binary")
	registerCmd.Flags().BoolVarP(&regYes, "yes", "y", false, "sign without asking and never prompt for retries")
	registerCmd.Flags().IntVar(&regRetries, "retries", 3, "how many times a failed step may be retried")
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := NormalizePath(args[0])

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	payload, err := payloadFromBytes(path, data, regKind)
	if err != nil {
		return err
	}
	tags, err := parseTags(regTags)
	if err != nil {
		return err
	}
	identifier := regIdentifier
	if identifier == "" {
		identifier = filepath.Base(path)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	client, err := action.NewDefaultClient(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.CheckNetwork(ctx); err != nil {
		return saveToFallback(ctx, client, identifier, payload, tags, err)
	}

	local, err := action.NewLocalSigner(cfg, logger)
	if err != nil {
		return err
	}
	var sg signer.Signer = local
	if !regYes {
		sg = signer.NewPromptSigner(local, nil)
	}
	client.ConnectSigner(ctx, sg)
	fmt.Printf("Signing as %s\n", sg.Address())

	client.SubscribeToEvents(event.UploadRetry, func(e event.Event) {
		fmt.Printf("  retrying upload (attempt %v)\n", e.Data[event.KeyAttempt])
	})

	f, err := client.NewFlow(ctx)
	if err != nil {
		return err
	}

	if err := f.Prepare(ctx, payload, identifier, tags); err != nil {
		return err
	}
	s := f.Session()
	fmt.Printf("Encoded %s as %s (blob %s, %d bytes)\n", identifier, s.Kind, s.BlobID, s.Size)

	if err := runStep(ctx, f, f.RegisterOnChain); err != nil {
		return err
	}
	fmt.Printf("Registered: %s\n", f.Session().RegisterDigest)
	fmt.Println("Slivers uploaded")

	if err := runStep(ctx, f, f.CertifyOnChain); err != nil {
		return err
	}
	printSession(f.Session())
	return nil
}

// runStep runs op and, while the failure is retryable and the user agrees,
// re-attempts whichever step the flow failed in.
func runStep(ctx context.Context, f *flow.Flow, op func(context.Context) error) error {
	err := op(ctx)
	for attempt := 0; err != nil && attempt < regRetries; attempt++ {
		var ferr *flow.Error
		if !errors.As(err, &ferr) || !ferr.Retryable() {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", ferr.Op, ferr.Err)
		if !confirmRetry(ferr) {
			return err
		}
		err = retryOp(f, ferr.Op)(ctx)
	}
	return err
}

func retryOp(f *flow.Flow, op flow.Op) func(context.Context) error {
	switch op {
	case flow.OpUpload:
		return f.UploadToStorage
	case flow.OpCertify:
		return f.CertifyOnChain
	default:
		return f.RegisterOnChain
	}
}

func confirmRetry(ferr *flow.Error) bool {
	if regYes {
		// never sign again without the user when they declined
		return !errors.Is(ferr.Kind, flow.ErrUserCancelled)
	}
	ok := false
	msg := fmt.Sprintf("Retry %s?", ferr.Op)
	if err := survey.AskOne(&survey.Confirm{Message: msg, Default: true}, &ok); err != nil {
		return false
	}
	return ok
}

func saveToFallback(ctx context.Context, client *action.ClientImpl, identifier string, payload blobkit.Payload, tags map[string]string, cause error) error {
	fmt.Fprintf(os.Stderr, "Storage network unreachable: %v\n", cause)
	rec, err := client.SaveFallback(ctx, identifier, payload, tags)
	if err != nil {
		return err
	}
	fmt.Printf("Saved to fallback store\nKey: %s\n", rec.Key)
	return nil
}

func printSession(s flow.Session) {
	fmt.Println("Registration complete")
	fmt.Printf("Identifier:      %s\n", s.Identifier)
	fmt.Printf("Blob ID:         %s\n", s.BlobID)
	fmt.Printf("CID:             %s\n", s.CID)
	fmt.Printf("Register digest: %s\n", s.RegisterDigest)
	fmt.Printf("Certify digest:  %s\n", s.CertifyDigest)
	fmt.Printf("Result IDs:      %s\n", strings.Join(s.ResultIDs, ", "))
}
