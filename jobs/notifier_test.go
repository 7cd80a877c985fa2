package jobs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/chorale-hq/chorale/internal/absences"
	"github.com/chorale-hq/chorale/internal/gigs"
)

type recordingEnqueuer struct {
	sent []SendEmailPayload
}

func (r *recordingEnqueuer) EnqueueSendEmail(_ context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	r.sent = append(r.sent, payload)
	return &asynq.TaskInfo{}, nil
}

func TestAbsenceDecidedEmailsTheMember(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	notifier := NewNotifier(enqueuer, "officers@example.com")

	err := notifier.AbsenceDecided(context.Background(), absences.AbsenceRequest{
		Member: "greg@example.com",
		Event:  7,
		Reason: "sick",
		Status: absences.StatusApproved,
	}, "Fall Concert")
	require.NoError(t, err)

	require.Len(t, enqueuer.sent, 1)
	mail := enqueuer.sent[0]
	require.Equal(t, "greg@example.com", mail.To)
	require.Equal(t, "Your absence request for Fall Concert was approved", mail.Subject)
	require.Contains(t, mail.Body, "approved")
	require.Contains(t, mail.Body, "sick")
}

func TestAbsenceDecidedFallsBackToEventID(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	notifier := NewNotifier(enqueuer, "officers@example.com")

	err := notifier.AbsenceDecided(context.Background(), absences.AbsenceRequest{
		Member: "greg@example.com",
		Event:  7,
		Status: absences.StatusDenied,
	}, "")
	require.NoError(t, err)

	require.Len(t, enqueuer.sent, 1)
	require.Contains(t, enqueuer.sent[0].Subject, "event 7")
}

func TestGigRequestSubmittedEmailsTheOfficerList(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	notifier := NewNotifier(enqueuer, "officers@example.com")

	err := notifier.GigRequestSubmitted(context.Background(), gigs.GigRequest{
		Name:         "Holiday Party",
		Organization: "Alumni Association",
		ContactName:  "Pat Jones",
		ContactEmail: "pat@example.com",
		ContactPhone: "404-555-0100",
		StartTime:    time.Date(2026, time.December, 12, 19, 0, 0, 0, time.UTC),
		Location:     "Clary Theatre",
	})
	require.NoError(t, err)

	require.Len(t, enqueuer.sent, 1)
	mail := enqueuer.sent[0]
	require.Equal(t, "officers@example.com", mail.To)
	require.Equal(t, "New gig request: Holiday Party", mail.Subject)
	require.Contains(t, mail.Body, "Pat Jones")
	require.Contains(t, mail.Body, "Alumni Association")
	require.Contains(t, mail.Body, "Clary Theatre")
}

func TestComposeMessage(t *testing.T) {
	msg := string(composeMessage("from@example.com", "to@example.com", "Hello", "Body text"))

	require.True(t, strings.HasPrefix(msg, "From: from@example.com\r\n"))
	require.Contains(t, msg, "To: to@example.com\r\n")
	require.Contains(t, msg, "Subject: Hello\r\n")

	headers, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found)
	require.Contains(t, headers, "Content-Type: text/plain; charset=utf-8")
	require.Equal(t, "Body text\r\n", body)
}
