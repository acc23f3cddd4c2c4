package collision

import (
	"github.com/regolith-sim/regolith/internal/aggregate"
	"github.com/regolith-sim/regolith/internal/storage"
)

// AggregateHandler joins colliding particles into rigid clusters instead of
// merging them away: the aggregates of the pair are merged in the holder
// and the contact itself bounces with the configured restitution. Rigid
// motion of the cluster is then enforced by the holder's integration. No
// particle is removed.
type AggregateHandler struct {
	Bounce ElasticBounce

	holder *aggregate.Holder
}

// Initialize adopts the holder attached to the storage, or rebuilds one
// from the persisted aggregate ids when the attached holder is stale.
func (a *AggregateHandler) Initialize(st *storage.Storage) error {
	if err := a.Bounce.Initialize(st); err != nil {
		return err
	}
	holder, ok := st.UserData().(*aggregate.Holder)
	if !ok || holder.ParticleCount() != st.ParticleCount() {
		if rebuilt, err := aggregate.NewFromIDs(st); ok && err == nil {
			holder = rebuilt
		} else {
			holder = aggregate.NewSingletons(st)
		}
		st.SetUserData(holder)
	}
	a.holder = holder
	return nil
}

func (a *AggregateHandler) Collide(i, j int, removed map[int]struct{}) (Result, error) {
	a.holder.Merge(a.holder.AggregateOf(i), a.holder.AggregateOf(j))
	return a.Bounce.Collide(i, j, removed)
}
