package portal

import (
	"sync"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/ports"
)

// Directory hands out one Client per city id.
type Directory struct {
	opts Options

	mu      sync.Mutex
	clients map[string]*Client
}

func NewDirectory(opts Options) *Directory {
	return &Directory{opts: opts, clients: make(map[string]*Client)}
}

func (d *Directory) ForCity(city domain.City) ports.GISPortal {
	d.mu.Lock()
	defer d.mu.Unlock()

	if client, ok := d.clients[city.ID]; ok {
		return client
	}
	client := NewClient(city, d.opts)
	d.clients[city.ID] = client
	return client
}
