package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Vec3 is a 3D position or direction used by node placement and the camera.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the component-wise sum of two vectors.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// BlockKind discriminates the content block variants.
type BlockKind string

const (
	BlockMarkdown BlockKind = "markdown"
	BlockImage    BlockKind = "image"
	BlockLink     BlockKind = "link"
	BlockEmbed    BlockKind = "embed"
)

// EmbedProvider is the closed set of recognised embed hosts.
type EmbedProvider string

const (
	ProviderYouTube EmbedProvider = "youtube"
	ProviderVimeo   EmbedProvider = "vimeo"
	ProviderFigma   EmbedProvider = "figma"
	ProviderUnknown EmbedProvider = "unknown"
)

// ProviderForURL derives the embed provider from the URL host.
// Unparseable URLs and unrecognised hosts map to ProviderUnknown.
func ProviderForURL(raw string) EmbedProvider {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ProviderUnknown
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "youtube.com" || host == "youtu.be" || strings.HasSuffix(host, ".youtube.com"):
		return ProviderYouTube
	case host == "vimeo.com" || strings.HasSuffix(host, ".vimeo.com"):
		return ProviderVimeo
	case host == "figma.com" || strings.HasSuffix(host, ".figma.com"):
		return ProviderFigma
	default:
		return ProviderUnknown
	}
}

// Block is one typed unit of a node's body. Kind selects which of the
// remaining fields are meaningful; the others stay zero and are never
// serialised.
type Block struct {
	Kind BlockKind

	// markdown
	Text string

	// image, link, embed
	URL string

	// image
	Alt string

	// link
	Label string

	// embed
	Provider EmbedProvider
}

// NewMarkdownBlock returns a markdown block with the given text.
func NewMarkdownBlock(text string) Block {
	return Block{Kind: BlockMarkdown, Text: text}
}

// NewImageBlock returns an image block.
func NewImageBlock(url, alt string) Block {
	return Block{Kind: BlockImage, URL: url, Alt: alt}
}

// NewLinkBlock returns a link block.
func NewLinkBlock(url, label string) Block {
	return Block{Kind: BlockLink, URL: url, Label: label}
}

// NewEmbedBlock returns an embed block with its provider derived from the URL.
func NewEmbedBlock(url string) Block {
	return Block{Kind: BlockEmbed, URL: url, Provider: ProviderForURL(url)}
}

type markdownBlockJSON struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text"`
}

type imageBlockJSON struct {
	Kind BlockKind `json:"kind"`
	URL  string    `json:"url"`
	Alt  string    `json:"alt,omitempty"`
}

type linkBlockJSON struct {
	Kind  BlockKind `json:"kind"`
	URL   string    `json:"url"`
	Label string    `json:"label,omitempty"`
}

type embedBlockJSON struct {
	Kind     BlockKind     `json:"kind"`
	URL      string        `json:"url"`
	Provider EmbedProvider `json:"provider"`
}

// MarshalJSON serialises only the fields that belong to the block's kind.
func (b Block) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case BlockMarkdown:
		return json.Marshal(markdownBlockJSON{Kind: b.Kind, Text: b.Text})
	case BlockImage:
		return json.Marshal(imageBlockJSON{Kind: b.Kind, URL: b.URL, Alt: b.Alt})
	case BlockLink:
		return json.Marshal(linkBlockJSON{Kind: b.Kind, URL: b.URL, Label: b.Label})
	case BlockEmbed:
		return json.Marshal(embedBlockJSON{Kind: b.Kind, URL: b.URL, Provider: b.Provider})
	default:
		return nil, fmt.Errorf("unknown block kind: %q", b.Kind)
	}
}

// UnmarshalJSON decodes a tagged block. Unknown kinds are rejected so the
// sum type stays closed.
func (b *Block) UnmarshalJSON(data []byte) error {
	var probe struct {
		Kind     BlockKind     `json:"kind"`
		Text     string        `json:"text"`
		URL      string        `json:"url"`
		Alt      string        `json:"alt"`
		Label    string        `json:"label"`
		Provider EmbedProvider `json:"provider"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch probe.Kind {
	case BlockMarkdown:
		*b = Block{Kind: BlockMarkdown, Text: probe.Text}
	case BlockImage:
		*b = Block{Kind: BlockImage, URL: probe.URL, Alt: probe.Alt}
	case BlockLink:
		*b = Block{Kind: BlockLink, URL: probe.URL, Label: probe.Label}
	case BlockEmbed:
		provider := probe.Provider
		if provider == "" {
			provider = ProviderForURL(probe.URL)
		}
		*b = Block{Kind: BlockEmbed, URL: probe.URL, Provider: provider}
	default:
		return fmt.Errorf("unknown block kind: %q", probe.Kind)
	}
	return nil
}

// Space is a named container graph. It exclusively owns its nodes, edges
// and view state; deleting a space cascades to all three.
type Space struct {
	ID        string `json:"id"`
	Name      string `json:"name" validate:"required,max=200"`
	Icon      string `json:"icon" validate:"max=16"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Node is a single thought unit inside exactly one space. SpaceID is
// immutable after creation; nodes never span spaces.
type Node struct {
	ID         string   `json:"id"`
	SpaceID    string   `json:"spaceId" validate:"required"`
	Title      string   `json:"title" validate:"max=500"`
	Tags       []string `json:"tags,omitempty" validate:"omitempty,dive,max=50"`
	Importance int      `json:"importance" validate:"min=1,max=5"`
	Position   Vec3     `json:"position"`
	Blocks     []Block  `json:"blocks"`
	CreatedAt  int64    `json:"createdAt"`
	UpdatedAt  int64    `json:"updatedAt"`
}

// HasTag reports whether the node carries the given tag. Tag order is
// irrelevant; the slice is treated as a set.
func (n *Node) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Edge is a directed, optionally labelled relation between two nodes of
// the same space.
type Edge struct {
	ID        string `json:"id"`
	SpaceID   string `json:"spaceId" validate:"required"`
	From      string `json:"from" validate:"required"`
	To        string `json:"to" validate:"required"`
	Relation  string `json:"relation,omitempty" validate:"max=100"`
	CreatedAt int64  `json:"createdAt"`
}

// Environment is the rendered backdrop of a space.
type Environment string

const (
	EnvDome      Environment = "dome"
	EnvWhiteRoom Environment = "white-room"
)

// EdgeVisibility selects which edges the renderer draws.
type EdgeVisibility string

const (
	VisibilityNeighborhood EdgeVisibility = "neighborhood"
	VisibilityTwoHop       EdgeVisibility = "two-hop"
	VisibilityAll          EdgeVisibility = "all"
)

// InteractionMode is the two-state observe/edit toggle persisted with the
// view. Both states are reachable from the other; there are no others.
type InteractionMode string

const (
	ModeObserve InteractionMode = "observe"
	ModeEdit    InteractionMode = "edit"
)

// Camera is replaced wholesale on view updates so position and target
// never come from different frames.
type Camera struct {
	Position Vec3 `json:"position"`
	Target   Vec3 `json:"target"`
}

// ViewState is the persisted camera/environment/visibility/mode for one
// space. There is exactly one per space and it is overwritten wholesale.
type ViewState struct {
	SpaceID        string          `json:"spaceId"`
	Camera         Camera          `json:"camera"`
	Environment    Environment     `json:"environment" validate:"oneof=dome white-room"`
	EdgeVisibility EdgeVisibility  `json:"edgeVisibility" validate:"oneof=neighborhood two-hop all"`
	Mode           InteractionMode `json:"mode" validate:"oneof=observe edit"`
}

// DefaultViewState returns the view every space starts with.
func DefaultViewState(spaceID string) ViewState {
	return ViewState{
		SpaceID:        spaceID,
		Camera:         Camera{Position: Vec3{X: 0, Y: 6, Z: 18}, Target: Vec3{}},
		Environment:    EnvDome,
		EdgeVisibility: VisibilityAll,
		Mode:           ModeObserve,
	}
}

// SettingsKey is the fixed key of the AppSettings singleton.
const SettingsKey = "app"

// AppSettings is the singleton session record: the schema version tag and
// the space to restore on the next start.
type AppSettings struct {
	SchemaVersion     int    `json:"schemaVersion"`
	LastOpenedSpaceID string `json:"lastOpenedSpaceId,omitempty"`
}

// NodeUpdate is a partial node mutation. Nil fields are left untouched.
type NodeUpdate struct {
	Title      *string   `json:"title,omitempty" validate:"omitempty,max=500"`
	Tags       *[]string `json:"tags,omitempty" validate:"omitempty,dive,max=50"`
	Importance *int      `json:"importance,omitempty" validate:"omitempty,min=1,max=5"`
	Position   *Vec3     `json:"position,omitempty"`
	Blocks     *[]Block  `json:"blocks,omitempty"`
}

// ViewUpdate is a partial view mutation. The camera, when present, replaces
// the stored camera wholesale.
type ViewUpdate struct {
	Camera         *Camera          `json:"camera,omitempty"`
	Environment    *Environment     `json:"environment,omitempty" validate:"omitempty,oneof=dome white-room"`
	EdgeVisibility *EdgeVisibility  `json:"edgeVisibility,omitempty" validate:"omitempty,oneof=neighborhood two-hop all"`
	Mode           *InteractionMode `json:"mode,omitempty" validate:"omitempty,oneof=observe edit"`
}
