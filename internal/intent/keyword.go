package intent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"mockmes/internal/command"
)

// KeywordResolver maps text to commands with ordered phrase rules. The first
// matching rule wins, so every input maps to at most one command.
//
// Create instances with [NewKeywordResolver].
type KeywordResolver struct {
	sfcID     *regexp.Regexp
	routingID *regexp.Regexp
	sfcPrefix string
	rtPrefix  string
}

var (
	numberRe = regexp.MustCompile(`\d+`)
	nonWord  = regexp.MustCompile(`[^a-z0-9 ]+`)
)

// NewKeywordResolver creates a resolver that recognizes ids built from the
// given prefixes, for example "SFCMOCK" and "ROUTING".
func NewKeywordResolver(sfcPrefix, routingPrefix string) *KeywordResolver {
	return &KeywordResolver{
		sfcID:     idPattern(sfcPrefix),
		routingID: idPattern(routingPrefix),
		sfcPrefix: sfcPrefix,
		rtPrefix:  routingPrefix,
	}
}

func idPattern(prefix string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(prefix)) + `\s*(\d+)\b`)
}

// request is the parsed form of one input line.
type request struct {
	text      string
	sfcID     string
	routingID string
	numbers   []int
}

func (r request) has(phrases ...string) bool {
	padded := " " + r.text + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

func (r request) step() (int, error) {
	if len(r.numbers) == 0 {
		return 0, fmt.Errorf("step not provided: %w", command.ErrMissingArgument)
	}
	return r.numbers[0], nil
}

// rule is one phrase rule. when decides whether the rule applies; build
// turns the request into a command.
type rule struct {
	name  string
	when  func(r request) bool
	build func(r request) (command.Command, error)
}

var rules = []rule{
	{
		name: command.NameHistory,
		when: func(r request) bool { return r.sfcID != "" && r.has("history", "journal", "log") },
		build: func(r request) (command.Command, error) {
			return command.History{SFCID: r.sfcID}, nil
		},
	},
	{
		name: command.NameRollbackSingle,
		when: func(r request) bool {
			return r.sfcID != "" && (r.has("rollback single", "roll back single", "single rollback", "step back", "undo", "go back"))
		},
		build: func(r request) (command.Command, error) {
			return command.RollbackSingle{SFCID: r.sfcID}, nil
		},
	},
	{
		name: command.NameRollback,
		when: func(r request) bool { return r.sfcID != "" && r.has("rollback", "roll back", "reset", "return") },
		build: func(r request) (command.Command, error) {
			step, err := r.step()
			if err != nil {
				return nil, err
			}
			return command.Rollback{SFCID: r.sfcID, Step: step}, nil
		},
	},
	{
		name: command.NameForceAdvance,
		when: func(r request) bool {
			return r.sfcID != "" && r.has("force", "forced", "force advance", "skip to", "jump to", "bypass")
		},
		build: func(r request) (command.Command, error) {
			step, err := r.step()
			if err != nil {
				return nil, err
			}
			return command.ForceAdvance{SFCID: r.sfcID, Step: step}, nil
		},
	},
	{
		name: command.NameAssignRouting,
		when: func(r request) bool { return r.sfcID != "" && r.routingID != "" },
		build: func(r request) (command.Command, error) {
			return command.AssignRouting{SFCID: r.sfcID, RoutingID: r.routingID}, nil
		},
	},
	{
		name: command.NameComplete,
		when: func(r request) bool { return r.sfcID != "" && r.has("complete", "finish", "close") },
		build: func(r request) (command.Command, error) {
			return command.Complete{SFCID: r.sfcID}, nil
		},
	},
	{
		name: command.NameAdvance,
		when: func(r request) bool { return r.sfcID != "" && r.has("advance", "next", "move on", "proceed") },
		build: func(r request) (command.Command, error) {
			return command.Advance{SFCID: r.sfcID}, nil
		},
	},
	{
		name: command.NameGetRoutingState,
		when: func(r request) bool {
			return r.sfcID != "" && r.has("routing state", "operations", "progress", "where is")
		},
		build: func(r request) (command.Command, error) {
			return command.GetRoutingState{SFCID: r.sfcID}, nil
		},
	},
	{
		name: command.NameGetSFC,
		when: func(r request) bool { return r.sfcID != "" },
		build: func(r request) (command.Command, error) {
			return command.GetSFC{SFCID: r.sfcID}, nil
		},
	},
	{
		name: command.NameGetRouting,
		when: func(r request) bool { return r.routingID != "" },
		build: func(r request) (command.Command, error) {
			return command.GetRouting{RoutingID: r.routingID}, nil
		},
	},
	{
		name: command.NameCreateRouting,
		when: func(r request) bool { return r.has("create", "new", "make", "add") && r.has("routing") },
		build: func(r request) (command.Command, error) {
			if len(r.numbers) == 0 {
				return command.CreateRouting{}, nil
			}
			n := r.numbers[0]
			return command.CreateRouting{Operations: &n}, nil
		},
	},
	{
		name: command.NameCreateSFC,
		when: func(r request) bool { return r.has("create", "new", "make", "add") && r.has("sfc") },
		build: func(r request) (command.Command, error) {
			return command.CreateSFC{}, nil
		},
	},
	{
		name: command.NameListRoutings,
		when: func(r request) bool { return r.has("routings") },
		build: func(r request) (command.Command, error) {
			return command.ListRoutings{}, nil
		},
	},
	{
		name: command.NameListSFCs,
		when: func(r request) bool { return r.has("sfcs", "cards") },
		build: func(r request) (command.Command, error) {
			return command.ListSFCs{}, nil
		},
	},
}

// Resolve implements [Resolver]. The returned command is already validated.
func (k *KeywordResolver) Resolve(_ context.Context, text string) (command.Command, error) {
	r := k.parse(text)
	if r.text == "" {
		return nil, fmt.Errorf("empty request: %w", ErrUnrecognized)
	}
	for _, rl := range rules {
		if !rl.when(r) {
			continue
		}
		cmd, err := rl.build(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rl.name, err)
		}
		if err := cmd.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", rl.name, err)
		}
		return cmd, nil
	}
	return nil, fmt.Errorf("%q: %w", text, ErrUnrecognized)
}

// parse normalizes text (NFKC, lower case, punctuation to spaces), pulls out
// the first sfc and routing ids and then every remaining integer.
func (k *KeywordResolver) parse(text string) request {
	s := strings.ToLower(norm.NFKC.String(text))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)

	var r request
	if m := k.sfcID.FindStringSubmatchIndex(s); m != nil {
		r.sfcID = k.sfcPrefix + s[m[2]:m[3]]
		s = s[:m[0]] + " " + s[m[1]:]
	}
	if m := k.routingID.FindStringSubmatchIndex(s); m != nil {
		r.routingID = k.rtPrefix + s[m[2]:m[3]]
		s = s[:m[0]] + " " + s[m[1]:]
	}

	s = nonWord.ReplaceAllString(s, " ")
	for _, n := range numberRe.FindAllString(s, -1) {
		if v, err := strconv.Atoi(n); err == nil {
			r.numbers = append(r.numbers, v)
		}
	}
	r.text = strings.Join(strings.Fields(s), " ")
	return r
}
