package profilesync

import (
	"encoding/json"
	"fmt"
)

// AvatarState tags which form an Avatar is in.
type AvatarState uint8

const (
	AvatarAbsent AvatarState = iota
	AvatarPending
	AvatarPersisted
)

func (s AvatarState) String() string {
	switch s {
	case AvatarPending:
		return "pending"
	case AvatarPersisted:
		return "persisted"
	default:
		return "absent"
	}
}

// Avatar is the profile picture of a draft. A pending avatar holds a local
// asset reference that still has to be uploaded; a persisted one holds the
// public URL stored on the profile row.
type Avatar struct {
	state AvatarState
	ref   string
}

func NoAvatar() Avatar { return Avatar{} }

func PendingAvatar(localRef string) Avatar {
	if localRef == "" {
		return Avatar{}
	}
	return Avatar{state: AvatarPending, ref: localRef}
}

func PersistedAvatar(url string) Avatar {
	if url == "" {
		return Avatar{}
	}
	return Avatar{state: AvatarPersisted, ref: url}
}

// StoredAvatar converts the nullable foto column into an Avatar.
func StoredAvatar(foto *string) Avatar {
	if foto == nil {
		return Avatar{}
	}
	return PersistedAvatar(*foto)
}

func (a Avatar) State() AvatarState { return a.state }

// LocalRef returns the pending asset reference, if any.
func (a Avatar) LocalRef() (string, bool) {
	return a.ref, a.state == AvatarPending
}

// URL returns the persisted public URL, if any.
func (a Avatar) URL() (string, bool) {
	return a.ref, a.state == AvatarPersisted
}

// Column returns the value to store in the foto column. Pending avatars have
// no storable form.
func (a Avatar) Column() (*string, error) {
	switch a.state {
	case AvatarAbsent:
		return nil, nil
	case AvatarPersisted:
		url := a.ref
		return &url, nil
	default:
		return nil, fmt.Errorf("avatar %q has not been uploaded", a.ref)
	}
}

func (a Avatar) String() string {
	if a.state == AvatarAbsent {
		return "absent"
	}
	return a.state.String() + "(" + a.ref + ")"
}

// MarshalJSON renders persisted avatars as their URL and everything else as null.
func (a Avatar) MarshalJSON() ([]byte, error) {
	if url, ok := a.URL(); ok {
		return json.Marshal(url)
	}
	return []byte("null"), nil
}
