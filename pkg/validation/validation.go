// Package validation checks write inputs before they reach storage.
package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noospace/noospace/pkg/models"
)

// Validator validates entities and partial updates against their struct
// tags plus the block rules the tags cannot express.
type Validator struct {
	validate *validator.Validate
}

// New returns a ready validator.
func New() *Validator {
	return &Validator{validate: validator.New()}
}

// Struct validates any tagged struct and flattens the field errors into
// one message.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(parts, "; "))
}

// Node validates a full node, including its blocks.
func (v *Validator) Node(node models.Node) error {
	if err := v.Struct(node); err != nil {
		return err
	}
	return v.blocks(node.Blocks)
}

// NodeUpdate validates a partial node mutation.
func (v *Validator) NodeUpdate(update models.NodeUpdate) error {
	if err := v.Struct(update); err != nil {
		return err
	}
	if update.Blocks != nil {
		return v.blocks(*update.Blocks)
	}
	return nil
}

// blocks enforces the closed sum type: every block carries a known kind
// and the fields that kind requires.
func (v *Validator) blocks(blocks []models.Block) error {
	for i, b := range blocks {
		switch b.Kind {
		case models.BlockMarkdown:
			// any text, including empty, is fine
		case models.BlockImage, models.BlockLink:
			if b.URL == "" {
				return fmt.Errorf("block %d: %s block requires a url", i, b.Kind)
			}
		case models.BlockEmbed:
			if b.URL == "" {
				return fmt.Errorf("block %d: embed block requires a url", i)
			}
			switch b.Provider {
			case models.ProviderYouTube, models.ProviderVimeo, models.ProviderFigma, models.ProviderUnknown:
			default:
				return fmt.Errorf("block %d: unknown embed provider %q", i, b.Provider)
			}
		default:
			return fmt.Errorf("block %d: unknown block kind %q", i, b.Kind)
		}
	}
	return nil
}
