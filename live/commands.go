package live

import "encoding/json"

// Client commands.
const (
	CmdSetup  = "setupNotifications"
	CmdToggle = "toggleNotifications"
	CmdAdd    = "addNotificationItem"
	CmdRemove = "removeNotificationItem"
)

type setupPayload struct {
	Items   []string `json:"items"`
	Enabled *bool    `json:"enabled"`
}

func (h *Hub) handle(c *client, cmd command) {
	if h.registry == nil {
		return
	}
	log := h.logger.With("client", c.id, "event", cmd.Event)

	switch cmd.Event {
	case CmdSetup:
		var p setupPayload
		if err := json.Unmarshal(cmd.Data, &p); err != nil {
			log.Warn("live: bad payload", "error", err)
			return
		}
		enabled := true
		if p.Enabled != nil {
			enabled = *p.Enabled
		}
		sub := h.registry.Setup(c.id, p.Items, enabled)
		log.Info("live: notifications set up", "items", len(sub.Items), "enabled", sub.Enabled)

	case CmdToggle:
		var enabled bool
		if err := json.Unmarshal(cmd.Data, &enabled); err != nil {
			log.Warn("live: bad payload", "error", err)
			return
		}
		if !h.registry.Toggle(c.id, enabled) {
			log.Debug("live: toggle without subscription")
		}

	case CmdAdd:
		var item string
		if err := json.Unmarshal(cmd.Data, &item); err != nil {
			log.Warn("live: bad payload", "error", err)
			return
		}
		if _, err := h.registry.Add(c.id, item); err != nil {
			log.Debug("live: add item rejected", "error", err)
		}

	case CmdRemove:
		var item string
		if err := json.Unmarshal(cmd.Data, &item); err != nil {
			log.Warn("live: bad payload", "error", err)
			return
		}
		h.registry.Remove(c.id, item)

	default:
		log.Debug("live: unknown command")
	}
}
