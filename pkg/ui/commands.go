package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cardroom/cardroom/pkg/client"
)

type errorMsg error
type animTickMsg struct{}

// animQueueFlushLen bounds how far the animation queue may lag behind the
// wire before it gets flushed wholesale.
const animQueueFlushLen = 8

// listenUpdates waits for the next client update. Re-issued after every
// received message so the program keeps draining the channel.
func listenUpdates(c *client.Client) tea.Cmd {
	return func() tea.Msg {
		return <-c.UpdatesCh
	}
}

// dispatch runs one client call off the UI goroutine, surfacing failures as
// errorMsg. Successful calls answer through the update channel instead.
func dispatch(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return errorMsg(err)
		}
		return nil
	}
}

// animTicker paces the animation queue: one queued message is released per
// tick while a game renders.
func animTicker() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg {
		return animTickMsg{}
	})
}
