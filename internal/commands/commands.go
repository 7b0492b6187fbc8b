// Package commands holds the slash command definitions the bot registers
// with Discord.
package commands

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/pkordes/tripbot/internal/discord"
	"github.com/pkordes/tripbot/internal/domain"
)

//go:embed commands.yaml
var definitions []byte

// personOption is filled with one choice per participant.
const personOption = "person"

// Definitions returns the slash commands, with the participant choices taken
// from roster.
func Definitions(roster domain.Roster) ([]discord.ApplicationCommand, error) {
	var cmds []discord.ApplicationCommand
	if err := yaml.Unmarshal(definitions, &cmds); err != nil {
		return nil, fmt.Errorf("commands.Definitions: %w", err)
	}

	for i := range cmds {
		for j := range cmds[i].Options {
			opt := &cmds[i].Options[j]
			if opt.Name != personOption {
				continue
			}
			opt.Choices = nil
			for _, p := range domain.Participants {
				opt.Choices = append(opt.Choices, discord.CommandChoice{Name: roster.Name(p), Value: p.ID()})
			}
		}
	}
	return cmds, nil
}
