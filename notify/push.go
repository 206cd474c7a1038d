package notify

import (
	"context"
	"fmt"
	"log"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Registry holds the opaque device tokens a Push notifier multicasts to.
// Safe for concurrent use: the HTTP surface registers tokens while the
// scan loop sends.
type Registry struct {
	mu     sync.Mutex
	tokens map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]struct{})}
}

// Register adds a token. Adding an already-known token is a no-op.
func (r *Registry) Register(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = struct{}{}
}

// Unregister removes a token if present.
func (r *Registry) Unregister(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
}

// Tokens returns a snapshot of the registered tokens.
func (r *Registry) Tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.tokens))
	for t := range r.tokens {
		out = append(out, t)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// multicastSender is the slice of the Firebase messaging client the Push
// notifier needs; *messaging.Client satisfies it.
type multicastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Push multicasts notifications to every registered device via Firebase.
// Tokens that fail a send are pruned from the registry before the call
// returns, so dead registrations are attempted at most once.
type Push struct {
	sender   multicastSender
	registry *Registry
}

// NewPush builds a Push notifier from a Firebase service-account
// credentials file.
func NewPush(ctx context.Context, credentialsFile string, registry *Registry) (*Push, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("unable to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to create messaging client: %w", err)
	}
	return &Push{sender: client, registry: registry}, nil
}

// send multicasts one record. Returns true if at least one device accepted
// it. An empty registry is "not sent", not an error.
func (p *Push) send(ctx context.Context, rec Record) bool {
	tokens := p.registry.Tokens()
	if len(tokens) == 0 {
		log.Printf("Notify: no registered devices, skipping %s push", rec.Type)
		return false
	}
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: rec.Title,
			Body:  rec.Message,
		},
		Data: rec.Data,
	}
	resp, err := p.sender.SendEachForMulticast(ctx, msg)
	if err != nil {
		log.Printf("Notify: multicast send failed: %v", err)
		return false
	}
	if resp.FailureCount > 0 {
		for i, r := range resp.Responses {
			if r.Error != nil {
				log.Printf("Notify: pruning dead token %s: %v", tokens[i], r.Error)
				p.registry.Unregister(tokens[i])
			}
		}
	}
	log.Printf("Notify: push %s delivered to %d device(s), %d failed", rec.Type, resp.SuccessCount, resp.FailureCount)
	return resp.SuccessCount > 0
}

func (p *Push) NotifyPendingLeaveRequest(ctx context.Context, a Alert) bool {
	return p.send(ctx, leaveRequestRecord(a))
}

func (p *Push) NotifySummary(ctx context.Context, count int) bool {
	if count == 0 {
		return true
	}
	return p.send(ctx, summaryRecord(count))
}

func (p *Push) NotifyTest(ctx context.Context) bool {
	return p.send(ctx, testRecord())
}
