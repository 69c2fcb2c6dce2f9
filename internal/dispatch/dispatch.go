// Package dispatch turns assistant tool commands into app navigation and
// broadcast events.
package dispatch

import (
	"context"

	"go.uber.org/zap"

	"github.com/fdg312/fitswift-hub/internal/toolcall"
)

// Screen — экран приложения.
type Screen string

const (
	ScreenHome   Screen = "Home"
	ScreenCharts Screen = "Charts"
	ScreenChat   Screen = "Chat"
)

// Event names broadcast to the app.
const (
	EventShowChart    = "show_chart"
	EventShowActivity = "show_activity"
)

// Session адресует один разговор: пользователь и профиль.
type Session struct {
	UserID    string
	ProfileID string
}

// Navigator переключает экран приложения сессии.
type Navigator interface {
	SwitchScreen(ctx context.Context, session Session, screen Screen)
}

// Broadcaster рассылает событие всем подключениям сессии.
type Broadcaster interface {
	Broadcast(ctx context.Context, session Session, event string, payload map[string]any)
}

// Dispatcher исполняет команды. Ответа и подтверждения нет.
type Dispatcher struct {
	nav Navigator
	bc  Broadcaster
	log *zap.Logger
}

func New(nav Navigator, bc Broadcaster, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{nav: nav, bc: bc, log: log}
}

// Dispatch исполняет одну команду.
func (d *Dispatcher) Dispatch(ctx context.Context, session Session, cmd toolcall.Command) {
	switch c := cmd.(type) {
	case toolcall.ShowChart:
		// title всегда в payload, без заголовка это пустая строка
		title := ""
		if c.Title != nil {
			title = *c.Title
		}
		payload := map[string]any{
			"chartType": string(c.ChartType),
			"timeRange": string(c.TimeRange),
			"metric":    string(c.Metric),
			"title":     title,
		}
		d.nav.SwitchScreen(ctx, session, ScreenCharts)
		d.bc.Broadcast(ctx, session, EventShowChart, payload)

	case toolcall.ShowWorkoutHistory:
		d.nav.SwitchScreen(ctx, session, ScreenHome)
		d.bc.Broadcast(ctx, session, EventShowActivity, map[string]any{
			"timeRange": string(c.TimeRange),
		})

	case toolcall.ShowActivity:
		d.nav.SwitchScreen(ctx, session, ScreenHome)
		d.bc.Broadcast(ctx, session, EventShowActivity, map[string]any{})

	default:
		d.log.Warn("unknown tool command", zap.Any("command", cmd))
		return
	}

	d.log.Debug("tool command dispatched",
		zap.String("tool", cmd.Tool()),
		zap.String("user_id", session.UserID),
		zap.String("profile_id", session.ProfileID),
	)
}

// DispatchAll исполняет команды по порядку.
func (d *Dispatcher) DispatchAll(ctx context.Context, session Session, cmds []toolcall.Command) {
	for _, cmd := range cmds {
		d.Dispatch(ctx, session, cmd)
	}
}
