// Package network holds the static catalog of networks the wallet knows about.
package network

import (
	"ethwallet/pkg/models"

	"github.com/pkg/errors"
)

// Catalog is an ordered, read-only set of network descriptors. Mainnet comes
// first; detection walks the catalog in this order.
type Catalog struct {
	networks []models.NetworkDescriptor
	byID     map[models.NetworkID]int
}

// NewCatalog copies descriptors into a new catalog. At least two entries
// (mainnet and one test network) with distinct ids are required.
func NewCatalog(descriptors []models.NetworkDescriptor) (*Catalog, error) {
	if len(descriptors) < 2 {
		return nil, errors.New("catalog needs mainnet and at least one test network")
	}
	c := &Catalog{
		networks: make([]models.NetworkDescriptor, len(descriptors)),
		byID:     make(map[models.NetworkID]int, len(descriptors)),
	}
	copy(c.networks, descriptors)
	for i, d := range c.networks {
		if d.ID == "" {
			return nil, errors.Errorf("network at index %d has no id", i)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, errors.Errorf("network %s declared twice", d.ID)
		}
		c.byID[d.ID] = i
	}
	return c, nil
}

// Resolve returns the descriptor for id or ErrUnknownNetwork.
func (c *Catalog) Resolve(id models.NetworkID) (models.NetworkDescriptor, error) {
	i, ok := c.byID[id]
	if !ok {
		return models.NetworkDescriptor{}, errors.Wrapf(models.ErrUnknownNetwork, "%q", id)
	}
	return c.networks[i], nil
}

// All returns the descriptors in declared order. The slice is a copy.
func (c *Catalog) All() []models.NetworkDescriptor {
	out := make([]models.NetworkDescriptor, len(c.networks))
	copy(out, c.networks)
	return out
}

// Len reports the number of networks.
func (c *Catalog) Len() int {
	return len(c.networks)
}
