// Package template defines the built-in space presets and instantiates
// them into consistent (Space, Nodes, Edges, ViewState) bundles. The
// instantiator is pure: it writes nothing, the facade persists the result.
package template

import (
	"errors"
	"math"

	"github.com/noospace/noospace/pkg/ident"
	"github.com/noospace/noospace/pkg/models"
)

// ErrNotFound is returned when a template key matches no preset.
var ErrNotFound = errors.New("template not found")

// FallbackKey is the guaranteed-present preset used whenever a lookup
// fails at a call site that must not error (import, seeding).
const FallbackKey = "blank"

// seedNode describes one node of a preset before ids are assigned.
type seedNode struct {
	Title      string
	Tags       []string
	Importance int
	Blocks     []models.Block
}

// seedEdge links preset nodes by index into the node list.
type seedEdge struct {
	From     int
	To       int
	Relation string
}

// Template is a named preset bundle. Node 0 is the core; the remaining
// nodes orbit it.
type Template struct {
	Key   string
	Name  string
	Icon  string
	nodes []seedNode
	edges []seedEdge
}

// Bundle is an instantiated preset, ready to persist in one transaction.
type Bundle struct {
	Space models.Space
	Nodes []models.Node
	Edges []models.Edge
	View  models.ViewState
}

var builtins = []Template{
	{
		Key:  "blank",
		Name: "Blank Space",
		Icon: "✨",
		nodes: []seedNode{
			{Title: "Core", Importance: 5, Blocks: []models.Block{
				models.NewMarkdownBlock("This is the heart of your new space. Link every big idea back here."),
			}},
			{Title: "First Thought", Importance: 3, Blocks: []models.Block{
				models.NewMarkdownBlock("Write anything. Nodes are cheap."),
			}},
			{Title: "Second Thought", Importance: 3, Blocks: []models.Block{
				models.NewMarkdownBlock("Drag nodes around, link them, delete them."),
			}},
			{Title: "How this works", Importance: 2, Blocks: []models.Block{
				models.NewMarkdownBlock("Every node holds ordered blocks: markdown, images, links and embeds."),
				models.NewLinkBlock("https://commonmark.org", "Markdown reference"),
			}},
		},
		edges: []seedEdge{
			{From: 0, To: 1, Relation: "related"},
			{From: 0, To: 2, Relation: "related"},
			{From: 0, To: 3, Relation: "related"},
		},
	},
	{
		Key:  "research",
		Name: "Research Brain",
		Icon: "🧠",
		nodes: []seedNode{
			{Title: "Core", Tags: []string{"hub"}, Importance: 5, Blocks: []models.Block{
				models.NewMarkdownBlock("Your research hub. Capture into the Inbox, distill into Ideas."),
			}},
			{Title: "Inbox", Tags: []string{"capture"}, Importance: 4, Blocks: []models.Block{
				models.NewMarkdownBlock("Unsorted captures land here before they earn a place."),
			}},
			{Title: "Reading List", Tags: []string{"capture"}, Importance: 3, Blocks: []models.Block{
				models.NewMarkdownBlock("Papers and posts queued for a careful read."),
				models.NewLinkBlock("https://arxiv.org", "arXiv"),
			}},
			{Title: "Resources", Tags: []string{"reference"}, Importance: 3, Blocks: []models.Block{
				models.NewMarkdownBlock("Durable resources: tools, datasets, reference material."),
			}},
			{Title: "Ideas", Tags: []string{"synthesis"}, Importance: 4, Blocks: []models.Block{
				models.NewMarkdownBlock("Original ideas distilled from everything else."),
			}},
		},
		edges: []seedEdge{
			{From: 0, To: 1, Relation: "child"},
			{From: 0, To: 2, Relation: "child"},
			{From: 0, To: 3, Relation: "child"},
			{From: 0, To: 4, Relation: "child"},
			{From: 2, To: 3, Relation: "related"},
		},
	},
	{
		Key:  "life",
		Name: "Life OS",
		Icon: "🌱",
		nodes: []seedNode{
			{Title: "Core", Tags: []string{"hub"}, Importance: 5, Blocks: []models.Block{
				models.NewMarkdownBlock("One space for everything that keeps life running."),
			}},
			{Title: "Health", Tags: []string{"area"}, Importance: 4, Blocks: []models.Block{
				models.NewMarkdownBlock("Sleep, training, checkups."),
			}},
			{Title: "Finances", Tags: []string{"area"}, Importance: 4, Blocks: []models.Block{
				models.NewMarkdownBlock("Budget, subscriptions, the yearly review."),
			}},
			{Title: "Relationships", Tags: []string{"area"}, Importance: 4, Blocks: []models.Block{
				models.NewMarkdownBlock("People worth staying close to."),
			}},
			{Title: "Projects", Tags: []string{"area"}, Importance: 3, Blocks: []models.Block{
				models.NewMarkdownBlock("Anything with more than one step and a finish line."),
			}},
		},
		edges: []seedEdge{
			{From: 0, To: 1, Relation: "child"},
			{From: 0, To: 2, Relation: "child"},
			{From: 0, To: 3, Relation: "child"},
			{From: 0, To: 4, Relation: "child"},
		},
	},
	{
		Key:  "startup",
		Name: "Startup Map",
		Icon: "🚀",
		nodes: []seedNode{
			{Title: "Core", Tags: []string{"hub"}, Importance: 5, Blocks: []models.Block{
				models.NewMarkdownBlock("The one-line mission. Everything below should serve it."),
			}},
			{Title: "Problem", Tags: []string{"discovery"}, Importance: 5, Blocks: []models.Block{
				models.NewMarkdownBlock("Who hurts, how badly, and how do they cope today?"),
			}},
			{Title: "Product", Tags: []string{"build"}, Importance: 4, Blocks: []models.Block{
				models.NewMarkdownBlock("The smallest thing that relieves the pain."),
				models.NewEmbedBlock("https://www.figma.com/file/placeholder"),
			}},
			{Title: "Market", Tags: []string{"discovery"}, Importance: 4, Blocks: []models.Block{
				models.NewMarkdownBlock("Size, segments, and the wedge."),
			}},
			{Title: "Runway", Tags: []string{"ops"}, Importance: 3, Blocks: []models.Block{
				models.NewMarkdownBlock("Months left at current burn. Update monthly."),
			}},
		},
		edges: []seedEdge{
			{From: 0, To: 1, Relation: "child"},
			{From: 0, To: 2, Relation: "child"},
			{From: 0, To: 3, Relation: "child"},
			{From: 0, To: 4, Relation: "child"},
			{From: 1, To: 2, Relation: "related"},
		},
	},
}

// Keys returns the built-in template keys in seeding order.
func Keys() []string {
	keys := make([]string, len(builtins))
	for i, t := range builtins {
		keys[i] = t.Key
	}
	return keys
}

// Lookup returns the template for key.
func Lookup(key string) (Template, error) {
	for _, t := range builtins {
		if t.Key == key {
			return t, nil
		}
	}
	return Template{}, ErrNotFound
}

// Fallback returns the guaranteed-present blank template.
func Fallback() Template {
	t, _ := Lookup(FallbackKey)
	return t
}

// Instantiate materialises the template into a bundle with fresh
// identifiers. The core node sits near the origin and satellites are laid
// out on a circle around it.
func Instantiate(t Template, gen ident.Generator, now int64) Bundle {
	space := models.Space{
		ID:        gen.NewID(ident.KindSpace),
		Name:      t.Name,
		Icon:      t.Icon,
		CreatedAt: now,
		UpdatedAt: now,
	}

	nodes := make([]models.Node, len(t.nodes))
	for i, sn := range t.nodes {
		importance := sn.Importance
		if importance == 0 {
			importance = 3
		}
		nodes[i] = models.Node{
			ID:         gen.NewID(ident.KindNode),
			SpaceID:    space.ID,
			Title:      sn.Title,
			Tags:       sn.Tags,
			Importance: importance,
			Position:   seedPosition(i, len(t.nodes)),
			Blocks:     sn.Blocks,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}

	edges := make([]models.Edge, len(t.edges))
	for i, se := range t.edges {
		edges[i] = models.Edge{
			ID:        gen.NewID(ident.KindEdge),
			SpaceID:   space.ID,
			From:      nodes[se.From].ID,
			To:        nodes[se.To].ID,
			Relation:  se.Relation,
			CreatedAt: now,
		}
	}

	// Every preset starts from the canonical view; ResetView relies on
	// this to restore a space to its original framing.
	view := models.DefaultViewState(space.ID)

	return Bundle{Space: space, Nodes: nodes, Edges: edges, View: view}
}

// seedPosition places node 0 at the center and the rest on a radius-8
// circle at alternating heights, so fresh spaces read as a hub with
// satellites.
func seedPosition(index, total int) models.Vec3 {
	if index == 0 {
		return models.Vec3{X: 0, Y: 2, Z: 0}
	}
	satellites := total - 1
	if satellites < 1 {
		satellites = 1
	}
	angle := 2 * math.Pi * float64(index-1) / float64(satellites)
	y := 2.0
	if index%2 == 0 {
		y = 3.5
	}
	return models.Vec3{
		X: 8 * math.Cos(angle),
		Y: y,
		Z: 8 * math.Sin(angle),
	}
}
