package mqtt

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sweeney/sq-peripheral/internal/gatt"
)

// Mirror forwards attribute database writes to a publisher.
type Mirror struct {
	pub Publisher
	now func() time.Time
	log logrus.FieldLogger
}

// NewMirror creates a Mirror stamping events with now.
func NewMirror(pub Publisher, now func() time.Time, log logrus.FieldLogger) *Mirror {
	return &Mirror{pub: pub, now: now, log: log.WithField("module", "mqtt")}
}

// Forward publishes one update. Failures are logged, never returned: the
// mirror must not disturb the device loop.
func (m *Mirror) Forward(u gatt.Update) {
	ev := CharacteristicEvent{
		Timestamp: m.now(),
		Name:      u.ID.String(),
		Value:     u.Value,
		Raw:       u.Raw,
	}
	if err := m.pub.PublishCharacteristic(ev); err != nil {
		m.log.WithError(err).WithField("characteristic", ev.Name).Warn("mirror publish failed")
	}
}
