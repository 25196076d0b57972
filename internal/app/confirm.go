package app

import "context"

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Confirmer asks the user before a destructive action and reports its outcome.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
	Notify(ctx context.Context, notice Notice)
}

// confirmThen runs call only after the user confirmed prompt, then notifies
// success or failure.
func confirmThen(ctx context.Context, c Confirmer, prompt string, call func() error, ok, failed Notice) error {
	if !c.Confirm(ctx, prompt) {
		return ErrNotConfirmed
	}
	if err := call(); err != nil {
		c.Notify(ctx, failed)
		return err
	}
	c.Notify(ctx, ok)
	return nil
}
