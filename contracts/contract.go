package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/crytic/medusa-geth/accounts/abi"
	"github.com/crytic/plum/events"
	"github.com/crytic/plum/utils"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// AddressChangedEvent is published by a Contract whenever a new deployment address is recorded for it.
type AddressChangedEvent struct {
	// Contract is the contract whose address changed.
	Contract *Contract

	// NetworkID is the network the address was recorded on.
	NetworkID uint64

	// Address is the most recent address of the contract on the network.
	Address string
}

// ContractDefinition describes the compiler-produced parts of a contract artifact.
type ContractDefinition struct {
	// Name is the contract name, unique within a build output tree.
	Name string

	// Abi is the JSON-encoded ABI of the contract.
	Abi json.RawMessage

	// Bytecode is the hex-encoded creation bytecode, possibly holding library placeholders.
	Bytecode string

	// DeployedBytecode is the hex-encoded runtime bytecode, if the compiler reported it.
	DeployedBytecode string

	// SourcePath is the source file the contract was compiled from, relative to the contracts directory.
	SourcePath string
}

// artifactFile is the persisted form of a Contract.
type artifactFile struct {
	ContractName     string                     `json:"contractName"`
	Abi              json.RawMessage            `json:"abi"`
	Bytecode         *string                    `json:"bytecode"`
	DeployedBytecode string                     `json:"deployedBytecode,omitempty"`
	SourcePath       string                     `json:"sourcePath,omitempty"`
	Networks         map[string]json.RawMessage `json:"networks,omitempty"`
}

// Contract describes a compiled contract artifact: its ABI, its bytecode with any library placeholders, and the
// deployment records kept for every network it was deployed to. A Contract is mutated only through its own methods
// and must not be used from multiple goroutines concurrently.
type Contract struct {
	name             string
	abiJSON          json.RawMessage
	abi              abi.ABI
	bytecode         string
	deployedBytecode string
	sourcePath       string

	// placeholders are derived from bytecode on load and are never persisted separately.
	placeholders []LinkPlaceholder

	networks map[uint64]*DeploymentRecord

	// deployedThisSession tracks the networks this contract received an address on since it was loaded. The first
	// address of a session replaces any history loaded from disk, later ones are appended.
	deployedThisSession map[uint64]bool

	// network is the active network used by AddLink and ClearLinks.
	network uint64

	// filePath is the path the contract was loaded from or last saved to.
	filePath string

	dirty bool
	clock func() time.Time

	// AddressChanged is published every time SetAddress records a new address.
	AddressChanged events.EventEmitter[AddressChangedEvent]
}

// NewContract creates a Contract from a compiler definition, validating its name, ABI, and bytecode. The returned
// contract has no deployment records and is marked dirty.
func NewContract(definition ContractDefinition) (*Contract, error) {
	bytecode := definition.Bytecode
	return newContract(artifactFile{
		ContractName:     definition.Name,
		Abi:              definition.Abi,
		Bytecode:         &bytecode,
		DeployedBytecode: definition.DeployedBytecode,
		SourcePath:       definition.SourcePath,
	})
}

// LoadContract reads and validates the artifact file at the provided path. An error wrapping ErrInvalidContract is
// returned if the file does not hold a valid artifact.
func LoadContract(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	contract, err := LoadContractFromJSON(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not load artifact %s", path)
	}
	contract.filePath = path
	contract.dirty = false
	return contract, nil
}

// LoadContractFromJSON parses and validates a JSON-encoded artifact. Since the artifact does not originate from a
// file, the returned contract is marked dirty.
func LoadContractFromJSON(data []byte) (*Contract, error) {
	var file artifactFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContract, err)
	}
	return newContract(file)
}

// newContract validates the provided artifact contents and builds a Contract from them.
func newContract(file artifactFile) (*Contract, error) {
	if strings.TrimSpace(file.ContractName) == "" {
		return nil, fmt.Errorf("%w: missing contract name", ErrInvalidContract)
	}

	trimmedAbi := bytes.TrimSpace(file.Abi)
	if len(trimmedAbi) == 0 || trimmedAbi[0] != '[' {
		return nil, fmt.Errorf("%w: contract %s has a missing or malformed abi", ErrInvalidContract, file.ContractName)
	}
	parsedAbi, err := abi.JSON(bytes.NewReader(trimmedAbi))
	if err != nil {
		return nil, fmt.Errorf("%w: contract %s has a malformed abi: %v", ErrInvalidContract, file.ContractName, err)
	}

	if file.Bytecode == nil {
		return nil, fmt.Errorf("%w: contract %s has no bytecode", ErrInvalidContract, file.ContractName)
	}
	placeholders, err := scanBytecode(*file.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("%w: contract %s: %w", ErrInvalidContract, file.ContractName, err)
	}

	return &Contract{
		name:                file.ContractName,
		abiJSON:             append(json.RawMessage{}, trimmedAbi...),
		abi:                 parsedAbi,
		bytecode:            *file.Bytecode,
		deployedBytecode:    file.DeployedBytecode,
		sourcePath:          file.SourcePath,
		placeholders:        placeholders,
		networks:            parseNetworks(file.Networks),
		deployedThisSession: make(map[uint64]bool),
		dirty:               true,
		clock:               time.Now,
	}, nil
}

// Name returns the contract name.
func (c *Contract) Name() string {
	return c.name
}

// Abi returns the parsed ABI of the contract.
func (c *Contract) Abi() abi.ABI {
	return c.abi
}

// AbiJSON returns the ABI of the contract as it is persisted.
func (c *Contract) AbiJSON() json.RawMessage {
	return c.abiJSON
}

// Bytecode returns the unlinked creation bytecode of the contract.
func (c *Contract) Bytecode() string {
	return c.bytecode
}

// DeployedBytecode returns the runtime bytecode of the contract, if known.
func (c *Contract) DeployedBytecode() string {
	return c.deployedBytecode
}

// SourcePath returns the source file the contract was compiled from, if known.
func (c *Contract) SourcePath() string {
	return c.sourcePath
}

// FilePath returns the path the contract was loaded from or last saved to.
func (c *Contract) FilePath() string {
	return c.filePath
}

// IsDirty indicates whether the in-memory state of the contract differs from its last persisted form.
func (c *Contract) IsDirty() bool {
	return c.dirty
}

// Placeholders returns the library placeholders found in the contract bytecode, ordered by offset.
func (c *Contract) Placeholders() []LinkPlaceholder {
	return slices.Clone(c.placeholders)
}

// References returns true if the bytecode holds a placeholder for the given library.
func (c *Contract) References(libraryName string) bool {
	return slices.IndexFunc(c.placeholders, func(p LinkPlaceholder) bool {
		return p.LibraryName == libraryName
	}) >= 0
}

// Network returns the active network of the contract.
func (c *Contract) Network() uint64 {
	return c.network
}

// SetNetwork sets the active network used by AddLink and ClearLinks.
func (c *Contract) SetNetwork(networkID uint64) {
	c.network = networkID
}

// Networks returns the ids of every network the contract holds a deployment record for, in ascending order.
func (c *Contract) Networks() []uint64 {
	ids := make([]uint64, 0, len(c.networks))
	for id := range c.networks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Record returns a copy of the deployment record for the given network.
func (c *Contract) Record(networkID uint64) (*DeploymentRecord, bool) {
	record, ok := c.networks[networkID]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

// recordFor returns the deployment record for the given network, creating it if it does not exist yet.
func (c *Contract) recordFor(networkID uint64) *DeploymentRecord {
	record, ok := c.networks[networkID]
	if !ok {
		record = &DeploymentRecord{}
		c.networks[networkID] = record
	}
	return record
}

// touch marks the contract dirty and advances the record's update time, never moving it backwards.
func (c *Contract) touch(record *DeploymentRecord) {
	now := c.clock().UnixMilli()
	if now > record.LastUpdate {
		record.LastUpdate = now
	}
	c.dirty = true
}

// SetAddress records a deployment address for the contract on the given network. The first address recorded in a
// session replaces any history loaded from disk; later ones are appended. Subscribers of AddressChanged are notified
// and the first error one of them returns is returned.
func (c *Contract) SetAddress(networkID uint64, address string) error {
	normalized, ok := utils.NormalizeAddress(address)
	if !ok {
		return errors.Wrapf(ErrInvalidAddress, "cannot set address %q of contract %s", address, c.name)
	}

	record := c.recordFor(networkID)
	if c.deployedThisSession[networkID] {
		record.Address = append(record.Address, normalized)
	} else {
		record.Address = AddressHistory{normalized}
		c.deployedThisSession[networkID] = true
	}
	c.touch(record)

	return c.AddressChanged.Publish(AddressChangedEvent{
		Contract:  c,
		NetworkID: networkID,
		Address:   normalized,
	})
}

// GetAddress returns the address at the given position of the contract's address history on a network. Negative
// indexes count from the end, so -1 is the most recent address. The boolean return is false if the network has no
// record or the index is out of range.
func (c *Contract) GetAddress(networkID uint64, index int) (string, bool) {
	record, ok := c.networks[networkID]
	if !ok {
		return "", false
	}
	if index < 0 {
		index += len(record.Address)
	}
	if index < 0 || index >= len(record.Address) {
		return "", false
	}
	return record.Address[index], true
}

// ResetSession forgets which networks received an address since the contract was loaded, so the next SetAddress on
// any network replaces the address history again.
func (c *Contract) ResetSession() {
	c.deployedThisSession = make(map[uint64]bool)
}

// AddLink records the address of a library on the active network. The link is only recorded if the bytecode holds a
// placeholder for the library, in which case true is returned.
func (c *Contract) AddLink(libraryName string, address string) (bool, error) {
	return c.addLink(c.network, libraryName, address)
}

func (c *Contract) addLink(networkID uint64, libraryName string, address string) (bool, error) {
	if libraryName == "" {
		return false, errors.Errorf("cannot link an unnamed library into contract %s", c.name)
	}
	normalized, ok := utils.NormalizeAddress(address)
	if !ok {
		return false, errors.Wrapf(ErrInvalidAddress, "cannot link library %s at %q", libraryName, address)
	}
	if !c.References(libraryName) {
		return false, nil
	}

	record := c.recordFor(networkID)
	if record.Links[libraryName] == normalized {
		return true, nil
	}
	if record.Links == nil {
		record.Links = make(map[string]string)
	}
	record.Links[libraryName] = normalized
	c.touch(record)
	return true, nil
}

// ClearLinks removes every resolved library address from the active network's record.
func (c *Contract) ClearLinks() {
	record, ok := c.networks[c.network]
	if !ok || len(record.Links) == 0 {
		return
	}
	record.Links = nil
	c.touch(record)
}

// BuildBytecode returns the creation bytecode of the contract with every library placeholder replaced by the address
// the library resolves to on the given network. Bytecode without placeholders is returned unchanged. An error
// wrapping ErrUndefinedLink is returned if any referenced library has no address on the network.
func (c *Contract) BuildBytecode(networkID uint64) (string, error) {
	if len(c.placeholders) == 0 {
		return c.bytecode, nil
	}

	var links map[string]string
	if record, ok := c.networks[networkID]; ok {
		links = record.Links
	}

	prefix, code := splitHexPrefix(c.bytecode)
	linked := []byte(code)
	missing := make([]string, 0)
	for _, placeholder := range c.placeholders {
		address, ok := links[placeholder.LibraryName]
		if !ok {
			if !slices.Contains(missing, placeholder.LibraryName) {
				missing = append(missing, placeholder.LibraryName)
			}
			continue
		}
		copy(linked[placeholder.Offset:placeholder.Offset+placeholder.Length], strings.TrimPrefix(address, "0x"))
	}
	if len(missing) > 0 {
		return "", errors.Wrapf(ErrUndefinedLink, "contract %s references library %s with no address on network %d", c.name, strings.Join(missing, ", "), networkID)
	}
	return prefix + string(linked), nil
}

// MarshalJSON implements json.Marshaler, producing the persisted artifact form.
func (c *Contract) MarshalJSON() ([]byte, error) {
	type persistedArtifact struct {
		ContractName     string                       `json:"contractName"`
		Abi              json.RawMessage              `json:"abi"`
		Bytecode         string                       `json:"bytecode"`
		DeployedBytecode string                       `json:"deployedBytecode,omitempty"`
		SourcePath       string                       `json:"sourcePath,omitempty"`
		Networks         map[string]*DeploymentRecord `json:"networks"`
	}

	networks := make(map[string]*DeploymentRecord, len(c.networks))
	for id, record := range c.networks {
		networks[strconv.FormatUint(id, 10)] = record
	}
	return json.Marshal(persistedArtifact{
		ContractName:     c.name,
		Abi:              c.abiJSON,
		Bytecode:         c.bytecode,
		DeployedBytecode: c.deployedBytecode,
		SourcePath:       c.sourcePath,
		Networks:         networks,
	})
}

// Save writes the contract to the provided path if it is dirty or force is set, and clears the dirty flag on
// success. If path is empty, the path the contract was loaded from or last saved to is used.
func (c *Contract) Save(path string, force bool) error {
	if path == "" {
		path = c.filePath
	}
	if path == "" {
		return errors.Errorf("no destination path to save contract %s to", c.name)
	}
	if !c.dirty && !force {
		return nil
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	if err = utils.WriteFileAtomic(path, data, 0644); err != nil {
		return errors.WithMessagef(err, "could not save contract %s", c.name)
	}

	c.filePath = path
	c.dirty = false
	return nil
}

// InheritNetworks copies every deployment record of the provided contract into this one, overwriting records for
// the same networks, and marks this contract dirty. It is used to keep deployment history when a contract is
// recompiled.
func (c *Contract) InheritNetworks(other *Contract) {
	if other == nil || len(other.networks) == 0 {
		return
	}
	for id, record := range other.networks {
		c.networks[id] = record.Clone()
	}
	c.dirty = true
}

// Libraries returns the names of every library referenced by the bytecode, sorted and without duplicates.
func (c *Contract) Libraries() []string {
	names := make([]string, 0, len(c.placeholders))
	for _, p := range c.placeholders {
		if !slices.Contains(names, p.LibraryName) {
			names = append(names, p.LibraryName)
		}
	}
	slices.Sort(names)
	return names
}
