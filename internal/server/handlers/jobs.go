package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	tagerrors "github.com/mantonx/mediatags/internal/errors"
	"github.com/mantonx/mediatags/internal/events"
	"github.com/mantonx/mediatags/internal/logger"
	"github.com/mantonx/mediatags/internal/modules/scanprofilemodule"
)

const (
	streamBuffer       = 64
	streamWriteTimeout = 10 * time.Second
)

// StreamedEventTypes are forwarded to websocket clients of the job stream
var StreamedEventTypes = []events.EventType{
	events.EventJobQueued,
	events.EventJobStarted,
	events.EventJobProgress,
	events.EventJobCompleted,
	events.EventJobCancelled,
	events.EventLayerCleared,
	events.EventProfilesLoaded,
	events.EventAssetAdded,
}

// JobsHandler serves scan jobs and the live event stream
type JobsHandler struct {
	jobs     *scanprofilemodule.JobManager
	bus      *events.Bus
	upgrader websocket.Upgrader
	logger   hclog.Logger
}

func NewJobsHandler(jobs *scanprofilemodule.JobManager, bus *events.Bus, log hclog.Logger) *JobsHandler {
	return &JobsHandler{
		jobs: jobs,
		bus:  bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.OrNull(log).Named("job-stream"),
	}
}

func (h *JobsHandler) ListJobs(c *gin.Context) {
	jobs := h.jobs.List()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (h *JobsHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	job, ok := h.jobs.Get(id)
	if !ok {
		tagerrors.HandleNotFound(c, "job", id)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// CancelJob stops a job between assets
func (h *JobsHandler) CancelJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.jobs.Cancel(id); err != nil {
		tagerrors.HandleError(c, err)
		return
	}
	job, _ := h.jobs.Get(id)
	c.JSON(http.StatusOK, gin.H{"job": job})
}

// Stream upgrades to a websocket and forwards job and index events until the
// client disconnects. Events are dropped for clients that fall behind.
func (h *JobsHandler) Stream(c *gin.Context) {
	if h.bus == nil {
		tagerrors.NewInternalError("event bus not available", nil).ToGinResponse(c)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	outbox := make(chan events.Event, streamBuffer)
	sub, err := h.bus.Subscribe("websocket:"+c.ClientIP(), events.EventFilter{Types: StreamedEventTypes}, func(e events.Event) {
		select {
		case outbox <- e:
		default:
			h.logger.Debug("dropping event for slow client", "type", e.Type)
		}
	})
	if err != nil {
		h.logger.Error("failed to subscribe job stream", "error", err)
		return
	}
	defer h.bus.Unsubscribe(sub.ID)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("job stream client connected", "client", c.ClientIP())
	for {
		select {
		case <-closed:
			h.logger.Debug("job stream client disconnected", "client", c.ClientIP())
			return
		case e := <-outbox:
			conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
			if err := conn.WriteJSON(e); err != nil {
				h.logger.Debug("job stream write failed", "error", err)
				return
			}
		}
	}
}
