package contracts

import (
	"encoding/json"
	"strconv"

	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
)

// AddressHistory describes the ordered list of addresses a contract was deployed at on one network, oldest first.
// It is persisted as a single string when it holds one address and as an array otherwise.
type AddressHistory []string

// MarshalJSON implements json.Marshaler.
func (h AddressHistory) MarshalJSON() ([]byte, error) {
	if len(h) == 1 {
		return json.Marshal(h[0])
	}
	return json.Marshal([]string(h))
}

// UnmarshalJSON implements json.Unmarshaler, accepting either a single address string or an array of them.
func (h *AddressHistory) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*h = AddressHistory{single}
		return nil
	}

	var multiple []string
	if err := json.Unmarshal(data, &multiple); err != nil {
		return errors.Wrap(ErrInvalidAddress, "address must be a string or an array of strings")
	}
	*h = multiple
	return nil
}

// Latest returns the most recently recorded address, if any.
func (h AddressHistory) Latest() (string, bool) {
	if len(h) == 0 {
		return "", false
	}
	return h[len(h)-1], true
}

// DeploymentRecord describes the deployment state of a contract on a single network.
type DeploymentRecord struct {
	// Address holds the addresses the contract was deployed at.
	Address AddressHistory `json:"address,omitempty"`

	// LastUpdate is the time of the last change to this record, in milliseconds since the UNIX epoch.
	LastUpdate int64 `json:"lastUpdate"`

	// Links maps library names to the addresses they resolve to on this network.
	Links map[string]string `json:"links,omitempty"`
}

// Clone returns a deep copy of the record.
func (r *DeploymentRecord) Clone() *DeploymentRecord {
	clone := &DeploymentRecord{
		LastUpdate: r.LastUpdate,
		Links:      maps.Clone(r.Links),
	}
	if r.Address != nil {
		clone.Address = append(AddressHistory{}, r.Address...)
	}
	return clone
}

// parseNetworks converts the raw networks section of an artifact into deployment records. Entries with a key that is
// not a non-negative integer, or with a malformed address, are dropped. Links with malformed addresses are dropped
// individually.
func parseNetworks(raw map[string]json.RawMessage) map[uint64]*DeploymentRecord {
	networks := make(map[uint64]*DeploymentRecord, len(raw))
	for key, value := range raw {
		networkID, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			continue
		}
		if _, exists := networks[networkID]; exists {
			continue
		}

		var record DeploymentRecord
		if err = json.Unmarshal(value, &record); err != nil {
			continue
		}

		valid := true
		for i, address := range record.Address {
			normalized, ok := utils.NormalizeAddress(address)
			if !ok {
				valid = false
				break
			}
			record.Address[i] = normalized
		}
		if !valid {
			continue
		}

		var links map[string]string
		for name, address := range record.Links {
			if normalized, ok := utils.NormalizeAddress(address); ok && name != "" {
				if links == nil {
					links = make(map[string]string, len(record.Links))
				}
				links[name] = normalized
			}
		}
		record.Links = links

		networks[networkID] = &record
	}
	return networks
}
