package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/encodeous/spantree/network"
	"github.com/encodeous/spantree/state"
	"github.com/spf13/pflag"
)

var errUsage = errors.New("invalid command")

const consoleUsage = `commands:
  n [-w] (-a | id)       list the neighbours of a node, -w adds link weights
  m -s id [-m] [-c]      start building the tree at id, -m manual, -c compressed
  m -n from to           hand the pen from a node to its tree neighbour
  t id                   print the tree of a node
  q                      quit`

// Console is the interactive command line of a running network
type Console struct {
	Net *network.Network
	Out io.Writer
	// defaults for m -s
	Manual     bool
	Compressed bool
}

// Run executes commands read from in until q, EOF or ctx is done
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.Out, consoleUsage)
	for {
		fmt.Fprint(c.Out, "> ")
		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		case <-ctx.Done():
			return nil
		}
		quit, err := c.Exec(ctx, line)
		if quit {
			return nil
		}
		if errors.Is(err, errUsage) {
			fmt.Fprintf(c.Out, "%v\n%s\n", err, consoleUsage)
		} else if err != nil {
			fmt.Fprintf(c.Out, "error: %v\n", err)
		}
		if err := c.Net.Context().Err(); err != nil {
			return c.Net.Wait()
		}
	}
}

func parseIds(args []string, n int) ([]state.NodeId, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%w: expected %d node ids, got %d", errUsage, n, len(args))
	}
	ids := make([]state.NodeId, 0, n)
	for _, arg := range args {
		id, err := state.ParseNodeId(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// Exec runs a single console command and reports whether the console should quit
func (c *Console) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch fields[0] {
	case "q", "quit", "exit":
		return true, nil
	case "h", "help":
		fmt.Fprintln(c.Out, consoleUsage)
		return false, nil
	case "n":
		return false, c.neighbours(fields[1:])
	case "m":
		return false, c.mst(ctx, fields[1:])
	case "t":
		return false, c.tree(fields[1:])
	default:
		return false, fmt.Errorf("%w: unknown command %q", errUsage, fields[0])
	}
}

func (c *Console) neighbours(args []string) error {
	fs := newFlagSet("n")
	weights := fs.BoolP("weights", "w", false, "")
	all := fs.BoolP("all", "a", false, "")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	var ids []state.NodeId
	if *all {
		if fs.NArg() != 0 {
			return fmt.Errorf("%w: -a takes no node id", errUsage)
		}
		ids = c.Net.Nodes()
	} else {
		var err error
		ids, err = parseIds(fs.Args(), 1)
		if err != nil {
			return err
		}
	}
	for _, id := range ids {
		nbs, err := c.Net.Neighbours(id, *weights)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "%d: %s\n", id, strings.Join(nbs, ", "))
	}
	return nil
}

func (c *Console) mst(ctx context.Context, args []string) error {
	fs := newFlagSet("m")
	start := fs.BoolP("start", "s", false, "")
	next := fs.BoolP("next", "n", false, "")
	manual := fs.BoolP("manual", "m", c.Manual, "")
	compressed := fs.BoolP("compressed", "c", c.Compressed, "")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	switch {
	case *start && !*next:
		ids, err := parseIds(fs.Args(), 1)
		if err != nil {
			return err
		}
		if err := c.Net.StartMST(ids[0], *manual, *compressed); err != nil {
			return err
		}
	case *next && !*start:
		ids, err := parseIds(fs.Args(), 2)
		if err != nil {
			return err
		}
		if err := c.Net.Handoff(ids[0], ids[1]); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: m needs exactly one of -s and -n", errUsage)
	}
	if err := c.Net.WaitIdle(ctx); err != nil {
		return err
	}
	holder, err := c.Net.PenHolder()
	if err != nil {
		return err
	}
	if holder != state.NoNode {
		fmt.Fprintf(c.Out, "node %d holds the pen\n", holder)
		return c.tree([]string{holder.String()})
	}
	return nil
}

func (c *Console) tree(args []string) error {
	ids, err := parseIds(args, 1)
	if err != nil {
		return err
	}
	t, err := c.Net.Snapshot(ids[0])
	if err != nil {
		return err
	}
	if t == nil {
		fmt.Fprintf(c.Out, "%d: not part of a tree\n", ids[0])
		return nil
	}
	fmt.Fprintf(c.Out, "%d: %s weight %d\n", ids[0], t, t.TotalWeight())
	return nil
}
