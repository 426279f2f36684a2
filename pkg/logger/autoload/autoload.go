// Package autoload initializes the global logger from the LOG_* environment
// variables as a side effect of being imported.
package autoload

import (
	"github.com/vendra/salescore/pkg/config"
	logx "github.com/vendra/salescore/pkg/logger"
)

func init() {
	logx.Init(*config.MustNew[logx.Config]("LOG"))
}
