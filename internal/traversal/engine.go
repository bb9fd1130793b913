package traversal

import (
	"fmt"
	"math/rand"
	"sort"

	"story-server/internal/models"
)

// CheckPolicy decides whether a dice check succeeds for the given effective
// stat value against the difficulty class. Pluggable so tests can pin the
// outcome; the roll value is returned for display.
type CheckPolicy func(statValue, dc int) (roll int, success bool)

// TwoDiceCheck is the default policy: 2d6 + stat >= DC.
func TwoDiceCheck(statValue, dc int) (int, bool) {
	roll := rand.Intn(6) + rand.Intn(6) + 2
	return roll, roll+statValue >= dc
}

// failedCheckPenalty is subtracted from the tested stat on a failed check.
const failedCheckPenalty = 2

// Graph is an immutable in-memory view of one story's nodes and choices,
// keyed for traversal. Choices are grouped under their source node and kept
// in source order.
type Graph struct {
	nodes   map[string]models.StoryNode
	choices map[string][]models.Choice
	entry   string
}

// NewGraph indexes nodes and choices. The entry node is the one with the
// lowest sort index, i.e. the first data row of the source.
func NewGraph(nodes []models.StoryNode, choices []models.Choice) *Graph {
	g := &Graph{
		nodes:   make(map[string]models.StoryNode, len(nodes)),
		choices: make(map[string][]models.Choice, len(nodes)),
	}
	entryIdx := -1
	for _, n := range nodes {
		g.nodes[n.NodeKey] = n
		if entryIdx == -1 || n.SortIndex < entryIdx {
			entryIdx = n.SortIndex
			g.entry = n.NodeKey
		}
	}
	for _, c := range choices {
		g.choices[c.FromNodeKey] = append(g.choices[c.FromNodeKey], c)
	}
	for key := range g.choices {
		cs := g.choices[key]
		sort.SliceStable(cs, func(i, j int) bool { return cs[i].SortIndex < cs[j].SortIndex })
	}
	return g
}

// Entry returns the node key traversal starts at.
func (g *Graph) Entry() string { return g.entry }

// Node returns the node for key, or false when the graph has no such node.
func (g *Graph) Node(key string) (models.StoryNode, bool) {
	n, ok := g.nodes[key]
	return n, ok
}

// Branching returns the branching variant of the node at key.
func (g *Graph) Branching(key string) models.Branching {
	n, ok := g.nodes[key]
	if !ok {
		return models.NewBranching(nil, nil)
	}
	return models.NewBranching(g.choices[key], n.DiceCheck)
}

// Choices returns the outgoing choices of the node at key, in source order.
func (g *Graph) Choices(key string) []models.Choice { return g.choices[key] }

// Engine advances a player session through a graph. It mutates only the
// session passed to it; the graph itself is shared and read-only.
type Engine struct {
	graph  *Graph
	policy CheckPolicy
}

func NewEngine(graph *Graph, policy CheckPolicy) *Engine {
	if policy == nil {
		policy = TwoDiceCheck
	}
	return &Engine{graph: graph, policy: policy}
}

// CurrentNode returns the node the session currently stands on.
func (e *Engine) CurrentNode(session *models.PlayerSession) (models.StoryNode, error) {
	n, ok := e.graph.Node(session.CurrentNodeKey)
	if !ok {
		return models.StoryNode{}, fmt.Errorf("node %q: %w", session.CurrentNodeKey, models.ErrNotFound)
	}
	return n, nil
}

// IsTerminal reports whether the session's current node ends the story: it
// offers no choices and carries no dice check.
func (e *Engine) IsTerminal(session *models.PlayerSession) bool {
	return e.graph.Branching(session.CurrentNodeKey).Kind == models.BranchTerminal
}

// ApplyChoice moves the session along one of the current node's outgoing
// choices, identified by index into the node's choice list. Stat effects
// attached to the choice are applied together with the move; on any error
// the session is left untouched.
func (e *Engine) ApplyChoice(session *models.PlayerSession, choiceIndex int) error {
	branching := e.graph.Branching(session.CurrentNodeKey)
	if branching.Kind != models.BranchChoices {
		return fmt.Errorf("node %q offers no choices: %w", session.CurrentNodeKey, models.ErrInvalidChoice)
	}
	if choiceIndex < 0 || choiceIndex >= len(branching.Choices) {
		return fmt.Errorf("choice %d out of range on node %q: %w", choiceIndex, session.CurrentNodeKey, models.ErrInvalidChoice)
	}
	chosen := branching.Choices[choiceIndex]

	for stat, delta := range chosen.Effect {
		v := session.Stats[stat] + delta
		if v < 0 {
			v = 0
		}
		session.Stats[stat] = v
	}
	session.CurrentNodeKey = chosen.ToNodeKey
	session.Completed = e.IsTerminal(session)
	return nil
}

// ApplyCheck resolves the dice check on the session's current node. A failed
// check costs the tested stat two points (floored at zero) before the session
// moves to the failure branch.
func (e *Engine) ApplyCheck(session *models.PlayerSession) (*models.CheckResult, error) {
	branching := e.graph.Branching(session.CurrentNodeKey)
	if branching.Kind != models.BranchCheck {
		return nil, fmt.Errorf("node %q: %w", session.CurrentNodeKey, models.ErrNoCheckOnNode)
	}
	check := branching.Check

	statValue, ok := session.Stats[check.Stat]
	if !ok {
		return nil, fmt.Errorf("stat %q: %w", check.Stat, models.ErrUnknownStat)
	}

	roll, success := e.policy(statValue, check.DC)
	result := &models.CheckResult{
		Stat:      check.Stat,
		StatValue: statValue,
		DC:        check.DC,
		Roll:      roll,
		Success:   success,
	}

	if success {
		result.NextNode = check.Success
	} else {
		result.NextNode = check.Fail
		v := statValue - failedCheckPenalty
		if v < 0 {
			v = 0
		}
		session.Stats[check.Stat] = v
	}
	session.CurrentNodeKey = result.NextNode
	session.Completed = e.IsTerminal(session)
	return result, nil
}
