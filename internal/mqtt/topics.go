package mqtt

import (
	"fmt"

	"github.com/daemonp/spc2mqtt/internal/types"
	"github.com/daemonp/spc2mqtt/internal/util"
)

type Topics struct {
	prefix string
}

func NewTopics(prefix string) *Topics {
	return &Topics{prefix: prefix}
}

func (t *Topics) Status() string {
	return fmt.Sprintf("%s/status", t.prefix)
}

func (t *Topics) Config() string {
	return fmt.Sprintf("%s/config", t.prefix)
}

func (t *Topics) Panel() string {
	return fmt.Sprintf("%s/panel", t.prefix)
}

func (t *Topics) PanelCommand() string {
	return fmt.Sprintf("%s/panel/command", t.prefix)
}

func (t *Topics) Zone(zone types.Zone) string {
	return fmt.Sprintf("%s/zone/%s", t.prefix, util.Slugify(zone.Name))
}

func (t *Topics) Event() string {
	return fmt.Sprintf("%s/event", t.prefix)
}
