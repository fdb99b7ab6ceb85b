package allocation

// Pool is one open gift pool as the draw sees it: the identifier and
// how many units it can still issue.
type Pool struct {
	GiftID    uint64
	Remaining int
}

// Winner is one registration entitled to a draw.
type Winner struct {
	RegistrationID uint64
	MemberID       uint64
}

// Assignment pairs a winner with the gift pool drawn for it.
type Assignment struct {
	RegistrationID uint64
	MemberID       uint64
	GiftID         uint64
}

// AssignPrizes draws one gift for each winner, uniformly at random
// over the pools that still have inventory at the moment of the
// draw.  A pool's remaining count does not weight its odds; every
// open pool is equally likely.  When a pool's inventory reaches zero
// it leaves the candidate set, and when no open pool remains the
// surviving winners simply receive nothing: the batch degrades
// instead of failing.  Draws are sequential, so a fixed random
// source makes the outcome deterministic.
func AssignPrizes(pools []Pool, winners []Winner) ([]Assignment, error) {
	open := make([]Pool, 0, len(pools))
	for _, p := range pools {
		if p.Remaining > 0 {
			open = append(open, p)
		}
	}
	set := newDrawSet(open)
	assignments := make([]Assignment, 0, len(winners))
	for _, w := range winners {
		if set.Len() == 0 {
			break
		}
		i, err := set.DrawIndex()
		if err != nil {
			return nil, err
		}
		p := set.Peek(i)
		assignments = append(assignments, Assignment{
			RegistrationID: w.RegistrationID,
			MemberID:       w.MemberID,
			GiftID:         p.GiftID,
		})
		p.Remaining--
		if p.Remaining == 0 {
			set.RemoveAt(i)
		}
	}
	return assignments, nil
}

// SelectExtra draws up to limit winners from the candidate set,
// uniformly at random without replacement.  Used by automatic
// allocation to recruit additional eligible registrations before the
// per-winner prize draw runs over the combined set.
func SelectExtra(candidates []Winner, limit int) ([]Winner, error) {
	if limit <= 0 || len(candidates) == 0 {
		return []Winner{}, nil
	}
	if limit > len(candidates) {
		limit = len(candidates)
	}
	set := newDrawSet(candidates)
	chosen := make([]Winner, 0, limit)
	for len(chosen) < limit {
		w, err := set.Draw()
		if err != nil {
			return nil, err
		}
		chosen = append(chosen, w)
	}
	return chosen, nil
}

// TotalRemaining sums the open inventory across pools.  Automatic
// selection recruits at most this many winners in total.
func TotalRemaining(pools []Pool) int {
	total := 0
	for _, p := range pools {
		if p.Remaining > 0 {
			total += p.Remaining
		}
	}
	return total
}
