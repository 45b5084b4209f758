package lifecycle

import (
	"context"

	"signalbridge/src/model"
)

// persist saves snap unless a newer version was already written.
func (m *Manager) persist(ctx context.Context, snap *model.Trade) {
	if m.store == nil {
		return
	}
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	if last, ok := m.saved[snap.ID]; ok && last >= snap.Version {
		return
	}
	if err := m.store.Save(ctx, snap.Clone()); err != nil {
		m.logger.WithFields(map[string]interface{}{
			"trade_id": snap.ID,
			"version":  snap.Version,
			"status":   snap.Status,
		}).WithError(err).Error("Failed to persist trade")
		return
	}
	m.saved[snap.ID] = snap.Version
}
