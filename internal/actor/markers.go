package actor

// InputBase is embedded in input structs to satisfy the Input marker
// interface. The unexported method keeps foreign types out of the mailbox.
type InputBase struct{}

func (InputBase) isActorInput() {}

// EffectBase is embedded in effect structs to satisfy the Effect marker
// interface.
type EffectBase struct{}

func (EffectBase) isActorEffect() {}
