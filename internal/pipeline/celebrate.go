package pipeline

// Celebration sequences the session-completion flow: one state per completed
// item, then an all-complete state, then an explicit terminal state. It
// follows the same transition discipline as the phase controller: steps only
// move forward and the terminal state is sticky.

type CelebrationState string

const (
	CelebrationIdle        CelebrationState = "idle"
	CelebrationStepping    CelebrationState = "stepping"
	CelebrationAllComplete CelebrationState = "all_complete"
	CelebrationDismissed   CelebrationState = "dismissed"
)

type Celebration struct {
	state CelebrationState
	total int
	done  int
}

func NewCelebration() *Celebration {
	return &Celebration{state: CelebrationIdle}
}

func (c *Celebration) State() CelebrationState { return c.state }

// Completed reports how many items have been stepped through so far.
func (c *Celebration) Completed() int { return c.done }

// Begin starts stepping through total items. Zero items jumps straight to
// the all-complete state.
func (c *Celebration) Begin(total int) error {
	if c.state != CelebrationIdle {
		return invalid("celebration already started (state: %s)", c.state)
	}
	if total < 0 {
		return invalid("item count cannot be negative")
	}
	c.total = total
	if total == 0 {
		c.state = CelebrationAllComplete
		return nil
	}
	c.state = CelebrationStepping
	return nil
}

// Advance marks the next item complete. There is no decrement; once all
// items are stepped the sequence moves to all-complete.
func (c *Celebration) Advance() error {
	if c.state != CelebrationStepping {
		return invalid("cannot advance celebration in state %s", c.state)
	}
	c.done++
	if c.done >= c.total {
		c.state = CelebrationAllComplete
	}
	return nil
}

// Dismiss moves to the terminal state. Dismissing twice is a no-op.
func (c *Celebration) Dismiss() {
	c.state = CelebrationDismissed
}
