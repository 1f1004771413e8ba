package queue

// ChatTask is the unit of work enqueued when a user submits a message.
// The worker resolves everything else (history, owner) from the message id;
// user_id rides along for log enrichment only.
type ChatTask struct {
	ChatMessageID int64
	UserID        int64
	TraceID       *string
	Attempt       int
}
