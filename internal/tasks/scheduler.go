// Package tasks schedules reservation expiry callbacks on Google Cloud Tasks.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/googleapis/gax-go/v2"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// scheduleSlack delays each callback a little past the expiry so that a
// callback arriving on time never finds the holds still live.
const scheduleSlack = time.Second

type taskClient interface {
	CreateTask(ctx context.Context, req *cloudtaskspb.CreateTaskRequest, opts ...gax.CallOption) (*cloudtaskspb.Task, error)
	Close() error
}

type Options struct {
	// QueuePath is projects/{project}/locations/{location}/queues/{queue}.
	QueuePath string
	// CallbackURL receives a POST with {"reservation_ids": [...]}.
	CallbackURL string
	// Token is sent as a bearer token on the callback.
	Token           string
	CredentialsFile string
}

// Scheduler creates one HTTP task per reserved batch, due when the batch
// expires.
type Scheduler struct {
	client taskClient
	opts   Options
	logger *logrus.Logger
}

func NewScheduler(ctx context.Context, opts Options, logger *logrus.Logger) (*Scheduler, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := cloudtasks.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("cloud tasks client: %w", err)
	}
	return newScheduler(client, opts, logger), nil
}

func newScheduler(client taskClient, opts Options, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{client: client, opts: opts, logger: logger}
}

type expiryPayload struct {
	ReservationIDs []string `json:"reservation_ids"`
}

func (s *Scheduler) ScheduleExpiry(ctx context.Context, reservationIDs []string, at time.Time) error {
	if len(reservationIDs) == 0 {
		return nil
	}
	body, err := json.Marshal(expiryPayload{ReservationIDs: reservationIDs})
	if err != nil {
		return err
	}

	req := &cloudtaskspb.CreateTaskRequest{
		Parent: s.opts.QueuePath,
		Task: &cloudtaskspb.Task{
			MessageType: &cloudtaskspb.Task_HttpRequest{
				HttpRequest: &cloudtaskspb.HttpRequest{
					Url:        s.opts.CallbackURL,
					HttpMethod: cloudtaskspb.HttpMethod_POST,
					Headers: map[string]string{
						"Content-Type":  "application/json",
						"Authorization": "Bearer " + s.opts.Token,
					},
					Body: body,
				},
			},
			ScheduleTime: timestamppb.New(at.Add(scheduleSlack)),
		},
	}

	if _, err := s.client.CreateTask(ctx, req); err != nil {
		s.logger.WithContext(ctx).WithFields(logrus.Fields{
			"object":    "tasks",
			"queuePath": s.opts.QueuePath,
			"count":     len(reservationIDs),
		}).WithError(err).Error("create expiry task")
		return fmt.Errorf("create expiry task: %w", err)
	}
	return nil
}

func (s *Scheduler) Close() error {
	return s.client.Close()
}
