package orchestrator

import (
	"log"
	"time"

	"github.com/BeatGlow/inkpet/internal/button"
	"github.com/BeatGlow/inkpet/internal/inbox"
	"github.com/BeatGlow/inkpet/internal/menu"
	"github.com/BeatGlow/inkpet/internal/state"
)

// handleEvents applies the queued events in arrival order. Menu moves are
// applied to the state machine as they come, so a later press acts on the
// menu it was pressed on. It reports whether the menu moved.
func (e *Engine) handleEvents(now time.Time, events []Event) (moved bool) {
	for _, ev := range events {
		switch ev.Kind {
		case EventFlag:
			// Already persisted by the watcher.
			if e.config.Debug {
				log.Printf("[DEBUG] orchestrator: %s flag %d", ev.Flag.Kind, ev.Flag.Seq)
			}
			e.needsRender = true

		case EventButton:
			e.delta.ButtonPresses++
			if e.handleButton(now, ev.Button) {
				moved = true
			}
		}
	}
	return
}

func (e *Engine) handleButton(now time.Time, ev button.Event) (moved bool) {
	var effect menu.Effect
	switch ev.Line {
	case button.Action:
		e.menus.Advance()
		return true
	case button.Return:
		effect = e.menus.HandleReturn()
	case button.Go:
		effect = e.menus.HandleGo(e.visibleMessages())
	}
	if e.config.Debug {
		log.Printf("[DEBUG] orchestrator: %s on %s: %s", ev.Line, e.menus.Current(), effect.Kind)
	}

	switch effect.Kind {
	case menu.Back:
		_, moved = e.menus.GoBack()
		return moved

	case menu.Feed:
		if err := e.store.Feed(); err != nil {
			log.Printf("[ERROR] orchestrator: feed: %v", err)
			e.recordError(now, err)
		}

	case menu.SendPoke:
		e.sendPoke(now)

	case menu.MarkRead:
		if _, err := e.store.MarkAllRead(); err != nil {
			log.Printf("[ERROR] orchestrator: mark read: %v", err)
			e.recordError(now, err)
		}

	case menu.ChangeSetting:
		settings, err := e.store.CycleSetting(effect.Setting)
		if err != nil {
			log.Printf("[ERROR] orchestrator: change %s: %v", effect.Setting, err)
			e.recordError(now, err)
		} else {
			log.Printf("[INFO] orchestrator: %s changed (time %dh, brightness %d, refresh %s)",
				effect.Setting, settings.TimeFormat, settings.Brightness, settings.RefreshMode)
		}
	}

	e.needsRender = true
	return false
}

// sendPoke queues an outgoing poke for the network process.
func (e *Engine) sendPoke(now time.Time) {
	f, err := inbox.Post(e.config.OutboxDir, inbox.Flag{
		Kind: state.KindPoke,
		From: e.config.Device,
	})
	if err != nil {
		log.Printf("[ERROR] orchestrator: send poke: %v", err)
		e.recordError(now, err)
		return
	}
	if err = e.store.RecordSent(); err != nil {
		log.Printf("[ERROR] orchestrator: record sent poke: %v", err)
	}
	e.delta.MessagesSent++
	log.Printf("[INFO] orchestrator: poke %d queued in %s", f.Seq, e.config.OutboxDir)
}

// visibleMessages is the number of messages the Messages menu lists.
func (e *Engine) visibleMessages() int {
	snap, err := e.store.Snapshot()
	if err != nil {
		log.Printf("[ERROR] orchestrator: %v", err)
		return 0
	}
	return len(snap.Messages.Recent(menu.VisibleMessages))
}
