package semantic

import (
	"github.com/upp-dev/upp/pkg/diagnostics"
	"github.com/upp-dev/upp/pkg/domain"
)

func newResolutionError(name string) error {
	return diagnostics.New(domain.CodeResolution, "unresolved name: "+name, "", 0, 0, nil)
}
