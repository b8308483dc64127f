package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	r.opts = append(r.opts, opts)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type(), Queue: QueueDefault}, nil
}

func (r *recordingEnqueuer) Close() error { return nil }

func TestClientEnqueueSelfHeal(t *testing.T) {
	enq := &recordingEnqueuer{}
	client := &Client{client: enq}

	info, err := client.EnqueueSelfHeal(context.Background(), SelfHealPayload{RequestedBy: "ops"})
	require.NoError(t, err)
	require.Equal(t, TaskMastersSelfHeal, info.Type)
	require.Len(t, enq.tasks, 1)

	var payload SelfHealPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	require.Equal(t, "ops", payload.RequestedBy)
	require.Contains(t, enq.opts[0], asynq.MaxRetry(SelfHealMaxRetry))
}

func TestNewClientRequiresAddress(t *testing.T) {
	_, err := NewClient(asynq.RedisClientOpt{})
	require.Error(t, err)

	var nilClient *Client
	_, err = nilClient.EnqueueSelfHeal(context.Background(), SelfHealPayload{})
	require.Error(t, err)
}

type stubQueue struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubQueue) GetQueueInfo(string) (*asynq.QueueInfo, error) { return s.info, s.err }

func TestHandlerHealthReportsQueue(t *testing.T) {
	serve := func(h *Handler) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		h.MountRoutes(r)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		return rr
	}

	rr := serve(NewHandler(nil, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0}`, rr.Body.String())

	h := NewHandler(nil, nil)
	h.inspector = stubQueue{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 4, Active: 1}}
	rr = serve(h)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":4,"active":1,"retry":0}`, rr.Body.String())

	h.inspector = stubQueue{err: errors.New("redis down")}
	rr = serve(h)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
