package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meltforce/setforge/internal/models"
	"github.com/meltforce/setforge/internal/rest"
	"github.com/meltforce/setforge/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local coaching UI only; same trust model as the CORS policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveFrame is the websocket view of one engine tick. Raw samples and the
// strain value itself stay out; only derived, publishable state is framed.
type liveFrame struct {
	Time    time.Time                 `json:"time"`
	State   session.State             `json:"state"`
	Rest    *rest.Snapshot            `json:"rest,omitempty"`
	Prompt  *models.ForgottenSetEvent `json:"prompt,omitempty"`
	RepDone *models.RepPhase          `json:"rep_done,omitempty"`
	// Intensity is the running estimate for the open set, capped for
	// athletes and uncapped for the trainer role.
	Intensity *float64 `json:"intensity,omitempty"`
	Estimated bool     `json:"estimated"`
	Safety    string   `json:"safety,omitempty"`
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	trainer := TrainerRole(r)

	ticks := make(chan session.Tick, 16)
	unsubscribe := s.workout.Subscribe(ticks)
	defer unsubscribe()

	// Drain client messages so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			frame := liveFrame{
				Time:      tick.Time,
				State:     tick.State,
				Rest:      tick.Rest,
				Prompt:    tick.Prompt,
				RepDone:   tick.RepDone,
				Estimated: tick.Strain.Estimated,
				Safety:    tick.Safety,
			}
			if tick.Live != nil {
				v := tick.Live.User
				if trainer {
					v = tick.Live.Trainer
				}
				frame.Intensity = &v
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
