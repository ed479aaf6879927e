package contracts

import (
	"github.com/crytic/plum/logging"
	"github.com/crytic/plum/logging/colors"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// linkPropagator is a callback that records a newly deployed contract's address on a dependent contract.
type linkPropagator func(event AddressChangedEvent) error

// Registry holds every valid artifact of a build output tree, loaded for a single network. Whenever a contract
// records a new address, the registry links that address into every other loaded contract, so deploying a library
// back-fills the bytecode links of every contract compiled against it.
type Registry struct {
	// store is the artifact store contracts are loaded from.
	store *Store

	// networkID is the network the registry was loaded for.
	networkID uint64

	// contracts maps contract names to loaded contracts.
	contracts map[string]*Contract

	// dependents maps a contract name to the callbacks which propagate its address to every other contract.
	dependents map[string][]linkPropagator

	// logger describes the registry's logger.
	logger *logging.Logger
}

// NewRegistry creates an empty Registry over the provided store for the given network. If logger is nil, the global
// logger is used.
func NewRegistry(store *Store, networkID uint64, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.GlobalLogger
	}
	return &Registry{
		store:      store,
		networkID:  networkID,
		contracts:  make(map[string]*Contract),
		dependents: make(map[string][]linkPropagator),
		logger:     logger.NewSubLogger("module", logging.CONTRACTS_SERVICE),
	}
}

// Initialize loads every artifact in the store, replacing anything previously loaded. Files that do not hold a valid
// artifact are skipped with a warning. Once loaded, every contract's address notifications are wired to link the
// address into every other contract, and addresses already known for the network are linked immediately.
func (r *Registry) Initialize() error {
	paths, err := r.store.List()
	if err != nil {
		return err
	}

	r.contracts = make(map[string]*Contract, len(paths))
	r.dependents = make(map[string][]linkPropagator, len(paths))
	for _, path := range paths {
		contract, err := r.store.Load(path)
		if err != nil {
			if errors.Is(err, ErrInvalidContract) {
				r.logger.Warn("Skipping ", colors.Bold, path, colors.Reset, ": ", err.Error())
				continue
			}
			return err
		}

		if existing, ok := r.contracts[contract.Name()]; ok {
			r.logger.Warn("Skipping ", colors.Bold, path, colors.Reset, ": contract ", contract.Name(), " is already loaded from ", existing.FilePath())
			continue
		}
		contract.SetNetwork(r.networkID)
		r.contracts[contract.Name()] = contract
	}

	r.wire()
	r.logger.Debug("Loaded ", len(r.contracts), " contract(s) for network ", r.networkID)
	return r.seedLinks()
}

// wire builds the dependents mapping and subscribes every contract's address notifications to it.
func (r *Registry) wire() {
	names := r.Names()
	for _, name := range names {
		for _, other := range names {
			if other == name {
				continue
			}
			dependent := r.contracts[other]
			r.dependents[name] = append(r.dependents[name], func(event AddressChangedEvent) error {
				_, err := dependent.addLink(event.NetworkID, event.Contract.Name(), event.Address)
				return err
			})
		}

		contract := r.contracts[name]
		contract.AddressChanged.Reset()
		contract.AddressChanged.Subscribe(r.propagate)
	}
}

// propagate calls every dependent callback of the contract that published the event.
func (r *Registry) propagate(event AddressChangedEvent) error {
	var firstErr error
	for _, dependent := range r.dependents[event.Contract.Name()] {
		if err := dependent(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// seedLinks links the most recent known address of every contract on the registry's network into every contract
// which references it but has no link for it yet.
func (r *Registry) seedLinks() error {
	for _, name := range r.Names() {
		contract := r.contracts[name]
		for _, library := range contract.Libraries() {
			record := contract.networks[r.networkID]
			if record != nil {
				if _, linked := record.Links[library]; linked {
					continue
				}
			}

			dependency, ok := r.contracts[library]
			if !ok {
				continue
			}
			address, ok := dependency.GetAddress(r.networkID, -1)
			if !ok {
				continue
			}
			if _, err := contract.addLink(r.networkID, library, address); err != nil {
				return err
			}
			r.logger.Debug("Linked ", library, " at ", address, " into ", name)
		}
	}
	return nil
}

// NetworkID returns the network the registry was loaded for.
func (r *Registry) NetworkID() uint64 {
	return r.networkID
}

// Get returns the loaded contract with the given name.
func (r *Registry) Get(name string) (*Contract, bool) {
	contract, ok := r.contracts[name]
	return contract, ok
}

// Names returns the names of every loaded contract, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.contracts))
	for name := range r.contracts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Contracts returns a copy of the name to contract mapping of every loaded contract.
func (r *Registry) Contracts() map[string]*Contract {
	contracts := make(map[string]*Contract, len(r.contracts))
	for name, contract := range r.contracts {
		contracts[name] = contract
	}
	return contracts
}

// SaveAll persists every dirty contract to the file it was loaded from. Every contract is attempted; the first error
// encountered is returned.
func (r *Registry) SaveAll() error {
	var firstErr error
	for _, name := range r.Names() {
		contract := r.contracts[name]
		if !contract.IsDirty() {
			continue
		}
		if err := r.store.Save(contract, "", false); err != nil {
			r.logger.Error("Failed to save contract ", colors.Bold, name, colors.Reset, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.logger.Debug("Saved contract ", name, " to ", contract.FilePath())
	}
	return firstErr
}
