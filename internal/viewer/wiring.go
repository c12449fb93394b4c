package viewer

import (
	"github.com/google/uuid"

	"github.com/osgrid/metaviewer/internal/packets"
	"github.com/osgrid/metaviewer/internal/session"
	"github.com/osgrid/metaviewer/internal/world"
)

// SessionObjectRequester adapts a session.Actor to world.ObjectRequester,
// sending a reliable RequestMultipleObjects for every cache miss.
type SessionObjectRequester struct {
	Actor     *session.Actor
	AgentID   uuid.UUID
	SessionID uuid.UUID
}

// RequestMultipleObjects implements world.ObjectRequester.
func (r *SessionObjectRequester) RequestMultipleObjects(localIDs []uint32, kind world.CacheMissKind) error {
	entries := make([]packets.RequestMultipleObjectsEntry, len(localIDs))
	for i, id := range localIDs {
		entries[i] = packets.RequestMultipleObjectsEntry{CacheMissType: uint8(kind), LocalID: id}
	}
	body := packets.EncodeRequestMultipleObjects(packets.RequestMultipleObjects{
		AgentID:   r.AgentID,
		SessionID: r.SessionID,
		Entries:   entries,
	})
	_, err := r.Actor.SendReliable(packets.KindRequestMultipleObjects, body)
	return err
}

// RegisterWorldHandlers wires the steady-state object and terrain traffic
// into the world-state tables, routing decoded messages the same way the
// session actor's dispatch table does for every other handled kind.
func RegisterWorldHandlers(a *session.Actor, objects *world.ObjectCache, terrain *world.TerrainCache) {
	a.RegisterHandler(packets.KindObjectUpdateCached, func(a *session.Actor, msg packets.Message) error {
		cached := msg.(packets.ObjectUpdateCached)
		entries := make([]world.CachedEntry, len(cached.Entries))
		for i, e := range cached.Entries {
			entries[i] = world.CachedEntry{LocalID: e.LocalID, CRC: e.CRC}
		}
		return objects.ReconcileCached(entries)
	})

	a.RegisterHandler(packets.KindObjectUpdateCompressed, func(a *session.Actor, msg packets.Message) error {
		rec := msg.(packets.CompressedObjectRecord)
		objects.Store(rec.LocalID, rec.CRC, rec)
		return nil
	})

	a.RegisterHandler(packets.KindObjectUpdate, func(a *session.Actor, msg packets.Message) error {
		rec := msg.(packets.ObjectUpdateRecord)
		objects.Store(rec.LocalID, rec.CRC, rec)
		return nil
	})

	a.RegisterHandler(packets.KindLayerData, func(a *session.Actor, msg packets.Message) error {
		layer := msg.(packets.LayerData)
		patches, err := world.DecodeTerrainPatches(layer.Data)
		if err != nil {
			return err
		}
		for _, p := range patches {
			terrain.Insert(p)
		}
		return nil
	})
}
