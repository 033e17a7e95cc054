package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/roach88/intents/internal/engine"
)

// DefaultSubmitSubject is the request/reply subject for submissions.
const DefaultSubmitSubject = "intents.submit"

// queueGroup lets several solver replicas share a subject; each request is
// answered once.
const queueGroup = "intents-solver"

// Submitter is the part of engine.Gateway the ingress needs.
type Submitter interface {
	Submit(ctx context.Context, sub engine.Submission) (engine.Receipt, error)
}

// Reply answers a submission. Error is empty on success.
type Reply struct {
	SessionID string `json:"session_id,omitempty"`
	Seq       int64  `json:"seq,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Ingress forwards submissions received over NATS to the gateway.
type Ingress struct {
	conn    *nats.Conn
	gateway Submitter
	subject string
	timeout time.Duration
	logger  *slog.Logger

	sub *nats.Subscription
}

// NewIngress creates an ingress on subject (DefaultSubmitSubject if empty).
func NewIngress(conn *nats.Conn, gateway Submitter, subject string, logger *slog.Logger) *Ingress {
	if subject == "" {
		subject = DefaultSubmitSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingress{
		conn:    conn,
		gateway: gateway,
		subject: subject,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Start subscribes to the submit subject.
func (i *Ingress) Start() error {
	sub, err := i.conn.QueueSubscribe(i.subject, queueGroup, i.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", i.subject, err)
	}
	i.sub = sub
	i.logger.Info("ingress listening", "subject", i.subject)
	return nil
}

// Stop drains the subscription so in-flight requests are answered.
func (i *Ingress) Stop() error {
	if i.sub == nil {
		return nil
	}
	return i.sub.Drain()
}

func (i *Ingress) handle(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()

	var reply Reply
	var sub engine.Submission
	if err := json.Unmarshal(msg.Data, &sub); err != nil {
		reply = Reply{Code: string(engine.ErrCodeInvalidIntent), Error: fmt.Sprintf("decode submission: %v", err)}
	} else if rcpt, err := i.gateway.Submit(ctx, sub); err != nil {
		reply = errorReply(err)
		i.logger.Debug("submission rejected", "session", sub.SessionID, "actor", sub.ActorID, "kind", sub.Kind, "error", err)
	} else {
		reply = Reply{SessionID: rcpt.SessionID, Seq: rcpt.Seq}
	}

	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		i.logger.Error("encode reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		i.logger.Warn("respond to submission", "error", err)
	}
}

func errorReply(err error) Reply {
	var ie *engine.InvalidIntentError
	if errors.As(err, &ie) {
		return Reply{SessionID: ie.SessionID, Code: string(ie.Code), Error: ie.Err.Error()}
	}
	return Reply{Error: err.Error()}
}

// ErrRejected is returned by Client.Submit when the solver refused the
// submission.
var ErrRejected = errors.New("submission rejected")

// Client submits intents to a remote solver.
type Client struct {
	conn    *nats.Conn
	subject string
}

// NewClient creates a client for subject (DefaultSubmitSubject if empty).
func NewClient(conn *nats.Conn, subject string) *Client {
	if subject == "" {
		subject = DefaultSubmitSubject
	}
	return &Client{conn: conn, subject: subject}
}

// Submit sends a submission and waits for its receipt.
func (c *Client) Submit(ctx context.Context, sub engine.Submission) (engine.Receipt, error) {
	data, err := json.Marshal(sub)
	if err != nil {
		return engine.Receipt{}, fmt.Errorf("encode submission: %w", err)
	}
	msg, err := c.conn.RequestWithContext(ctx, c.subject, data)
	if err != nil {
		return engine.Receipt{}, fmt.Errorf("request %s: %w", c.subject, err)
	}
	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return engine.Receipt{}, fmt.Errorf("decode reply: %w", err)
	}
	if reply.Error != "" {
		return engine.Receipt{}, fmt.Errorf("%w: %s %s", ErrRejected, reply.Code, reply.Error)
	}
	return engine.Receipt{SessionID: reply.SessionID, Seq: reply.Seq}, nil
}

// SubscribeTicks calls handler with the raw JSON of every committed tick of
// a session. The returned function unsubscribes.
func (c *Client) SubscribeTicks(sessionID string, handler func(data []byte)) (func(), error) {
	sub, err := c.conn.Subscribe(TickSubject(sessionID), func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return func() { sub.Unsubscribe() }, nil
}
