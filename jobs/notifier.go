package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/chorale-hq/chorale/internal/absences"
	"github.com/chorale-hq/chorale/internal/gigs"
)

// EmailEnqueuer is the slice of Client the notifier needs.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// Notifier turns domain notifications into queued emails. It satisfies the
// notifier ports of the absences and gigs services.
type Notifier struct {
	enqueuer EmailEnqueuer
	officers string
}

// NewNotifier constructs a Notifier. officers is the mailing list address
// that receives gig request announcements.
func NewNotifier(enqueuer EmailEnqueuer, officers string) *Notifier {
	return &Notifier{enqueuer: enqueuer, officers: officers}
}

// AbsenceDecided emails the member whose request was approved or denied.
func (n *Notifier) AbsenceDecided(ctx context.Context, request absences.AbsenceRequest, eventName string) error {
	if eventName == "" {
		eventName = fmt.Sprintf("event %d", request.Event)
	}
	_, err := n.enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      request.Member,
		Subject: fmt.Sprintf("Your absence request for %s was %s", eventName, request.Status),
		Body: fmt.Sprintf(
			"Your absence request for %s has been %s.\r\n\r\nYour reason: %s\r\n",
			eventName, request.Status, request.Reason),
	})
	return err
}

// GigRequestSubmitted emails the officer list about a new gig request.
func (n *Notifier) GigRequestSubmitted(ctx context.Context, request gigs.GigRequest) error {
	_, err := n.enqueuer.EnqueueSendEmail(ctx, SendEmailPayload{
		To:      n.officers,
		Subject: fmt.Sprintf("New gig request: %s", request.Name),
		Body: fmt.Sprintf(
			"%s from %s has requested a performance.\r\n\r\n"+
				"Event: %s\r\nWhen: %s\r\nWhere: %s\r\nContact: %s (%s)\r\n\r\n%s\r\n",
			request.ContactName, request.Organization,
			request.Name, request.StartTime.Format("Mon Jan 2 2006 3:04 PM"),
			request.Location, request.ContactEmail, request.ContactPhone,
			request.Comments),
	})
	return err
}
