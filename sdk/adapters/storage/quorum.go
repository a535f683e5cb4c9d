package storage

// QuorumPolicy decides how many sliver acknowledgements make an upload durable.
type QuorumPolicy interface {
	Required(total int) int
}

// ThresholdQuorum requires Threshold acks. A zero Threshold tolerates
// f = (total-1)/3 faulty slivers and requires total-f.
type ThresholdQuorum struct {
	Threshold int
}

func (q ThresholdQuorum) Required(total int) int {
	if total <= 0 {
		return 0
	}
	if q.Threshold > 0 {
		if q.Threshold > total {
			return total
		}
		return q.Threshold
	}
	return total - (total-1)/3
}

// AllQuorum requires every sliver.
type AllQuorum struct{}

func (AllQuorum) Required(total int) int { return total }
