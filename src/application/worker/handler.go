package worker

// MessageHandler processes the body of one queue message of its JobType.
type MessageHandler interface {
	JobType() string
	HandleMessage(message []byte) error
}
