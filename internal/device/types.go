package device

import (
	"time"
)

// Record is a known RF device as stored in the registry.
//
// IDString is the canonical identity (PROTOCOL-[group:]address) and the
// primary key. ProfileName binds the device to a profile in the profile
// registry; empty means the device was seen but not matched yet.
// RedirectAddress, when set, names the identity whose address should be
// used in place of this one when publishing state.
type Record struct {
	IDString        string            `json:"id_string"`
	Protocol        string            `json:"protocol"`
	Address         string            `json:"address"`
	GroupID         string            `json:"group_id,omitempty"`
	Model           string            `json:"model,omitempty"`
	ProfileName     string            `json:"profile_name,omitempty"`
	RedirectAddress string            `json:"redirect_address,omitempty"`
	FirstSeen       time.Time         `json:"first_seen"`
	LastSeen        time.Time         `json:"last_seen"`
	LastState       map[string]string `json:"last_state"`
}

// DeepCopy returns an independent copy of the record.
// The registry cache hands out copies so callers can mutate freely.
func (r *Record) DeepCopy() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.LastState != nil {
		clone.LastState = make(map[string]string, len(r.LastState))
		for k, v := range r.LastState {
			clone.LastState[k] = v
		}
	}
	return &clone
}
