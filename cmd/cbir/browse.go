package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ken/image_retrieval/pkg/core/feature"
	"github.com/ken/image_retrieval/pkg/engine"
)

const browseHelp = `Commands:
  query <id>                  Select the query image
  mark <id> [id...]           Mark images relevant to the query
  unmark <id> [id...]         Remove images from the relevance set
  rank intensity|colorcode    Rank by one raw histogram
  relevance                   Rank by weighted features using the relevance set
  reset                       Restore the ascending-id order
  show                        Print the session state
  quit                        Leave`

// browser drives one engine session from line commands
type browser struct {
	session *engine.Session
	out     io.Writer
}

func newBrowser(s *engine.Session, out io.Writer) *browser {
	return &browser{session: s, out: out}
}

// Run reads commands until quit or EOF. Command errors are printed and the
// loop continues.
func (b *browser) Run(in io.Reader) error {
	fmt.Fprintln(b.out, browseHelp)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(b.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(b.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}

		result, err := b.Execute(line)
		if err != nil {
			fmt.Fprintf(b.out, "Error: %v\n", err)
			continue
		}
		if result != "" {
			fmt.Fprintln(b.out, result)
		}
	}
}

// Execute runs a single command and returns its formatted output
func (b *browser) Execute(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "query":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: query <id>")
		}
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		if err := b.session.SelectQuery(id); err != nil {
			return "", err
		}
		return fmt.Sprintf("Query image %d selected", id), nil

	case "mark", "unmark":
		if len(args) == 0 {
			return "", fmt.Errorf("usage: %s <id> [id...]", cmd)
		}
		for _, a := range args {
			id, err := parseID(a)
			if err != nil {
				return "", err
			}
			if cmd == "unmark" {
				b.session.UnmarkRelevant(id)
				continue
			}
			if err := b.session.MarkRelevant(id); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("Relevant: %v", b.session.Relevant()), nil

	case "rank":
		if len(args) != 1 {
			return "", fmt.Errorf("usage: rank intensity|colorcode")
		}
		kind, err := feature.ParseKind(strings.ToLower(args[0]))
		if err != nil {
			return "", err
		}
		order, err := b.session.RankHistogram(kind)
		if err != nil {
			return "", err
		}
		return formatOrder(order), nil

	case "relevance":
		order, err := b.session.RankRelevance()
		if err != nil {
			return "", err
		}
		return formatOrder(order), nil

	case "reset":
		return formatOrder(b.session.Reset()), nil

	case "show":
		return fmt.Sprintf("State: %s\nQuery: %d\nRelevant: %v\nOrder: %s",
			b.session.State(), b.session.Query(), b.session.Relevant(), formatOrder(b.session.Order())), nil

	case "help":
		return browseHelp, nil

	default:
		return "", fmt.Errorf("unknown command %q, type help", cmd)
	}
}

func parseID(s string) (feature.ImageID, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid image id: %s", s)
	}
	return feature.ImageID(id), nil
}

func formatOrder(order feature.RankOrder) string {
	ids := order.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, " ")
}
