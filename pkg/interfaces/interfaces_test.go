package interfaces_test

import (
	"github.com/leyden/aotctl/pkg/interfaces"
	"github.com/leyden/aotctl/pkg/notifier"
	"github.com/leyden/aotctl/pkg/process"
	"github.com/leyden/aotctl/pkg/state"
	"github.com/leyden/aotctl/pkg/toolchain"
)

var (
	_ interfaces.StateStore        = (*state.Manager)(nil)
	_ interfaces.StageNotifier     = (*notifier.Notifier)(nil)
	_ interfaces.ToolchainResolver = (*toolchain.Resolver)(nil)
	_ interfaces.ProcessManager    = (*process.Manager)(nil)
	_ process.Launcher             = (*process.ExecLauncher)(nil)
)
