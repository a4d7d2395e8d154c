package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/stoppls/internal/model"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the configured rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, ruleCfg, err := loadConfigs()
		if err != nil {
			return err
		}

		if len(ruleCfg.Rules) == 0 {
			fmt.Println("No rules configured.")
			return nil
		}

		for i, rule := range ruleCfg.Rules {
			status := enabledStyle.Render("enabled")
			if !rule.Enabled {
				status = disabledStyle.Render("disabled")
			}

			fmt.Printf("%s [%s]\n", titleStyle.Render(rule.Name), status)
			if rule.Description != "" {
				fmt.Printf("  %s\n", rule.Description)
			}
			if rule.Location != "" {
				fmt.Printf("  %s %s\n", labelStyle.Render("Location:"), rule.Location)
			}

			var actions []string
			for _, action := range rule.Actions {
				actions = append(actions, action.Type)
			}
			fmt.Printf("  %s %s\n",
				labelStyle.Render("Actions:"), strings.Join(actions, ", "),
			)

			if i < len(ruleCfg.Rules)-1 {
				fmt.Println()
			}
		}

		return nil
	},
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a rule and save the rule file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleEnabled(args[0], true)
	},
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a rule and save the rule file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleEnabled(args[0], false)
	},
}

// setRuleEnabled flips the enabled flag of the named rule and writes
// the rule file back.
func setRuleEnabled(name string, enabled bool) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	path := resolveRulesPath(cfg)
	ruleCfg, err := model.LoadRules(path)
	if err != nil {
		return err
	}

	found := false
	for i := range ruleCfg.Rules {
		if ruleCfg.Rules[i].Name == name {
			ruleCfg.Rules[i].Enabled = enabled
			found = true
		}
	}
	if !found {
		return fmt.Errorf("no rule named %q in %s", name, path)
	}

	if err := model.SaveRules(path, ruleCfg); err != nil {
		return err
	}

	state := "enabled"
	if !enabled {
		state = "disabled"
	}
	fmt.Printf("Rule %q %s\n", name, state)
	return nil
}

func init() {
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
}
