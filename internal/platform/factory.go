package platform

import (
	"github.com/aretw0/notesync/pkg/core"
)

// New builds the adapters and wires a service around them. The service is
// not started; call Start once listeners are registered.
//
//	svc, err := notesync.New("./vault", notesync.WithAdapter("fs"))
func New(uri string, opts ...Option) (*core.Service, error) {
	a, err := Init(uri, opts...)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	collection, _ := o.config["collection"].(string)

	return core.NewService(a.Store, a.Provider, core.ServiceConfig{
		Collection: collection,
		Logger:     o.logger,
		Closers:    a.Closers,
	}), nil
}
