package runner

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/specialistvlad/droidbuild/internal/buildctx"
	"github.com/specialistvlad/droidbuild/internal/ctxlog"
	"github.com/specialistvlad/droidbuild/internal/dag"
	"github.com/specialistvlad/droidbuild/internal/extcmd"
	"github.com/specialistvlad/droidbuild/internal/extcmd/extcmdtest"
	"github.com/specialistvlad/droidbuild/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spy records the order in which task actions ran.
type spy struct {
	mu  sync.Mutex
	ran []string
}

func (s *spy) action(name string, err error) task.Action {
	return task.Func(func(context.Context, *buildctx.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.ran = append(s.ran, name)
		return err
	})
}

// diamond builds A <- B, A <- C, (B, C) <- D. failing names tasks whose
// action returns an error.
func diamond(t *testing.T, s *spy, failing ...string) *dag.Graph {
	t.Helper()
	fails := make(map[string]bool)
	for _, f := range failing {
		fails[f] = true
	}
	act := func(name string) task.Action {
		if fails[name] {
			return s.action(name, errors.New(name+" broke"))
		}
		return s.action(name, nil)
	}

	g := dag.New()
	require.NoError(t, g.AddTask(task.New("A", "", act("A"))))
	require.NoError(t, g.AddTask(task.New("B", "", act("B"), "A")))
	require.NoError(t, g.AddTask(task.New("C", "", act("C"), "A")))
	require.NoError(t, g.AddTask(task.New("D", "", act("D"), "B", "C")))
	return g
}

var ignoreTiming = cmpopts.IgnoreFields(Outcome{}, "Duration", "Err")

func testCtx() context.Context {
	return ctxlog.Discard(context.Background())
}

func TestRun_SucceedsInOrder(t *testing.T) {
	s := &spy{}
	g := diamond(t, s)

	report, err := New(Options{}).Run(testCtx(), g, &buildctx.Context{}, "D")
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, s.ran)
	assert.True(t, report.Succeeded())
	want := []Outcome{
		{Task: "A", Status: task.Succeeded},
		{Task: "B", Status: task.Succeeded},
		{Task: "C", Status: task.Succeeded},
		{Task: "D", Status: task.Succeeded},
	}
	if diff := cmp.Diff(want, report.Outcomes, ignoreTiming); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_OnlyRunsClosure(t *testing.T) {
	s := &spy{}
	g := diamond(t, s)

	report, err := New(Options{}).Run(testCtx(), g, &buildctx.Context{}, "C")
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "C"}, s.ran)
	assert.Equal(t, task.Pending, report.Status("B"))
	tk, _ := g.Task("B")
	assert.Equal(t, task.Pending, tk.Status())
}

func TestRun_FailureSkipsDependentsButRunsIndependentBranch(t *testing.T) {
	s := &spy{}
	g := diamond(t, s, "B")

	report, err := New(Options{}).Run(testCtx(), g, &buildctx.Context{}, "D")
	require.Error(t, err)

	var execErr *TaskExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "B", execErr.Task)
	assert.ErrorContains(t, err, "B broke")

	assert.Equal(t, []string{"A", "B", "C"}, s.ran, "D must never run")
	assert.Equal(t, task.Succeeded, report.Status("A"))
	assert.Equal(t, task.Failed, report.Status("B"))
	assert.Equal(t, task.Succeeded, report.Status("C"))
	assert.Equal(t, task.Skipped, report.Status("D"))
	assert.False(t, report.Succeeded())

	for _, name := range []string{"A", "B", "C", "D"} {
		tk, _ := g.Task(name)
		assert.Equal(t, report.Status(name), tk.Status(), "task %s status", name)
	}
}

func TestRun_ExternalCommandFailureCarriesExitCode(t *testing.T) {
	rec := extcmdtest.NewRecorder()
	rec.Script("b-tool", &extcmd.Result{ExitCode: 1, Stderr: []byte("boom")})
	bc := (&buildctx.Context{}).WithExecutor(rec)

	command := func(tool string) task.Action {
		return task.Commands(func(bc *buildctx.Context) ([]extcmd.Command, error) {
			return []extcmd.Command{{Path: bc.Tool(tool), FailOnNonzeroExit: true}}, nil
		})
	}

	g := dag.New()
	require.NoError(t, g.AddTask(task.New("A", "", command("a-tool"))))
	require.NoError(t, g.AddTask(task.New("B", "", command("b-tool"), "A")))
	require.NoError(t, g.AddTask(task.New("C", "", command("c-tool"), "A")))
	require.NoError(t, g.AddTask(task.New("D", "", command("d-tool"), "B", "C")))

	report, err := New(Options{}).Run(testCtx(), g, bc, "D")
	require.Error(t, err)

	var cmdErr *extcmd.Error
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 1, cmdErr.ExitCode)
	assert.Equal(t, "boom", string(cmdErr.Stderr))

	assert.Equal(t, task.Failed, report.Status("B"))
	assert.Equal(t, task.Succeeded, report.Status("C"))
	assert.Equal(t, task.Skipped, report.Status("D"))
	assert.Empty(t, rec.Invoked("d-tool"))
}

func TestRun_FailFastSkipsEverythingAfterFailure(t *testing.T) {
	s := &spy{}
	g := diamond(t, s, "B")

	report, err := New(Options{FailFast: true}).Run(testCtx(), g, &buildctx.Context{}, "D")
	require.Error(t, err)

	assert.Equal(t, []string{"A", "B"}, s.ran)
	assert.Equal(t, task.Skipped, report.Status("C"))
	assert.Equal(t, task.Skipped, report.Status("D"))
	assert.Equal(t, 2, report.Count(task.Skipped))
}

func TestRun_IsRepeatable(t *testing.T) {
	s := &spy{}
	g := diamond(t, s, "C")
	r := New(Options{})

	first, err1 := r.Run(testCtx(), g, &buildctx.Context{}, "D")
	second, err2 := r.Run(testCtx(), g, &buildctx.Context{}, "D")

	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, err1.Error(), err2.Error())
	assert.Equal(t, first.Order, second.Order)
	if diff := cmp.Diff(first.Outcomes, second.Outcomes, ignoreTiming); diff != "" {
		t.Errorf("second run differs (-first +second):\n%s", diff)
	}
}

func TestRun_UnknownTarget(t *testing.T) {
	s := &spy{}
	g := diamond(t, s)

	report, err := New(Options{}).Run(testCtx(), g, &buildctx.Context{}, "nope")
	assert.Nil(t, report)
	assert.ErrorIs(t, err, dag.ErrUnknownTask)
	assert.Empty(t, s.ran)
}

func TestRun_CanceledContextSkipsRemainingTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(testCtx())

	g := dag.New()
	require.NoError(t, g.AddTask(task.New("A", "", task.Func(func(context.Context, *buildctx.Context) error {
		cancel()
		return nil
	}))))
	require.NoError(t, g.AddTask(task.New("B", "", nil, "A")))

	report, err := New(Options{}).Run(ctx, g, &buildctx.Context{}, "B")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, task.Succeeded, report.Status("A"), "a started task runs to completion")
	assert.Equal(t, task.Skipped, report.Status("B"))
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) TaskStarted(name string) {
	o.events = append(o.events, "start:"+name)
}

func (o *recordingObserver) TaskFinished(name string, status task.Status, _ error) {
	o.events = append(o.events, status.String()+":"+name)
}

func TestRun_NotifiesObserver(t *testing.T) {
	s := &spy{}
	g := diamond(t, s, "A")
	obs := &recordingObserver{}

	_, err := New(Options{Observer: obs}).Run(testCtx(), g, &buildctx.Context{}, "B")
	require.Error(t, err)

	assert.Equal(t, []string{"start:A", "failed:A", "skipped:B"}, obs.events)
}
