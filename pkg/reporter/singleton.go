package reporter

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/angles-client-go/pkg/config"
)

var (
	instanceMu sync.Mutex
	instance   *Reporter
)

// Instance returns the process-wide Reporter, creating it from the default
// configuration on first use. Callers that need a configured base URL or
// want an error instead of a panic use New.
func Instance() *Reporter {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance == nil {
		r, err := newReporter(logrus.StandardLogger(), &config.Default().Client)
		// config.Default always yields a client config transport.New accepts,
		// so this only fires if the built-in defaults are broken.
		if err != nil {
			panic(fmt.Errorf("reporter: built-in client defaults rejected: %w", err))
		}

		instance = r
	}

	return instance
}

// InstanceWithBaseURL returns the process-wide Reporter pointed at baseURL.
func InstanceWithBaseURL(baseURL string) (*Reporter, error) {
	r := Instance()

	if err := r.SetBaseURL(baseURL); err != nil {
		return nil, err
	}

	return r, nil
}

// New installs the process-wide Reporter built from cfg. When one already
// exists it is returned together with ErrAlreadyInitialized.
func New(log logrus.FieldLogger, cfg *config.Config) (*Reporter, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return instance, ErrAlreadyInitialized
	}

	if cfg == nil {
		cfg = config.Default()
	}

	r, err := newReporter(log, &cfg.Client)
	if err != nil {
		return nil, err
	}

	instance = r

	return r, nil
}
