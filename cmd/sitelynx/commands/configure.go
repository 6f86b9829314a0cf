package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func NewConfigureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Manage SiteLynx configuration",
		Long: `Manage SiteLynx configuration profiles, view current settings,
and initialize configuration files.`,
	}

	cmd.AddCommand(newConfigureInitCommand())
	cmd.AddCommand(newConfigureShowCommand())
	cmd.AddCommand(newConfigureListCommand())
	cmd.AddCommand(newConfigureSetCommand())
	cmd.AddCommand(newConfigureGetCommand())
	return cmd
}

func newConfigureInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init [profile]",
		Short: "Initialize a new configuration profile",
		Long:  `Initialize a new configuration profile with default values (YAML).`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigureInit,
	}
}

func newConfigureShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [profile]",
		Short: "Show current configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigureShow,
	}
	cmd.Flags().StringP("profile", "p", "default", "Configuration profile")
	_ = viper.BindPFlag("configure.profile", cmd.Flags().Lookup("profile"))
	return cmd
}

func newConfigureListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available configuration profiles",
		RunE:  runConfigureList,
	}
}

func newConfigureSetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value for the selected profile.
Supports dotted keys (e.g. "audit.max_pages") and basic type parsing:
- booleans: true/false
- integers/floats: 10, 3.14
- durations (for keys containing timeout|delay|retention|every): "30s", "500ms"
- string lists: "a,b,c" -> ["a","b","c"]`,
		Args: cobra.ExactArgs(2),
		RunE: runConfigureSet,
	}
	cmd.Flags().StringP("profile", "p", "default", "Configuration profile")
	_ = viper.BindPFlag("configure.profile", cmd.Flags().Lookup("profile"))
	return cmd
}

func newConfigureGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigureGet,
	}
	cmd.Flags().StringP("profile", "p", "default", "Configuration profile")
	_ = viper.BindPFlag("configure.profile", cmd.Flags().Lookup("profile"))
	return cmd
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".sitelynx"), nil
}

func defaultProfileConfig() map[string]interface{} {
	return map[string]interface{}{
		"log_level":        "info",
		"log_format":       "text",
		"output_directory": "./data",
		"audit": map[string]interface{}{
			"max_pages":       60,
			"max_depth":       3,
			"delay":           "500ms",
			"timeout":         "30s",
			"keep_query":      false,
			"save_html":       true,
			"save_html_limit": 60,
			"pdf":             true,
		},
	}
}

func runConfigureInit(cmd *cobra.Command, args []string) error {
	profile := "default"
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		profile = strings.TrimSpace(args[0])
	}

	dir, err := configDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(dir, profile+".yaml")
	if _, err := os.Stat(configFile); err == nil {
		logrus.Warnf("Configuration file already exists: %s", configFile)
		ok, ierr := confirmOverwrite()
		if ierr != nil {
			return ierr
		}
		if !ok {
			logrus.Info("Configuration initialization cancelled")
			return nil
		}
	}

	if err := writeYAMLFile(configFile, defaultProfileConfig()); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	logrus.Infof("Configuration initialized: %s", configFile)
	logrus.Info("Edit this file to customize defaults. Run `sitelynx configure show -p " + profile + "` to view.")
	return nil
}

func runConfigureShow(cmd *cobra.Command, args []string) error {
	profile := viper.GetString("configure.profile")
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		profile = strings.TrimSpace(args[0])
	}

	v, err := loadProfile(profile)
	if err != nil {
		return fmt.Errorf("failed to load profile %s: %w", profile, err)
	}

	fmt.Printf("Configuration for profile: %s\n", profile)
	fmt.Println("═══════════════════════════════════════════════════════════════")

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GENERAL SETTINGS:\t")
	fmt.Fprintf(w, "  Log Level:\t%s\n", v.GetString("log_level"))
	fmt.Fprintf(w, "  Log Format:\t%s\n", v.GetString("log_format"))
	fmt.Fprintf(w, "  Output Directory:\t%s\n", v.GetString("output_directory"))
	fmt.Fprintln(w, "AUDIT SETTINGS:\t")
	fmt.Fprintf(w, "  Max Pages:\t%d\n", v.GetInt("audit.max_pages"))
	fmt.Fprintf(w, "  Max Depth:\t%d\n", v.GetInt("audit.max_depth"))
	fmt.Fprintf(w, "  Delay:\t%s\n", v.GetString("audit.delay"))
	fmt.Fprintf(w, "  Timeout:\t%s\n", v.GetString("audit.timeout"))
	fmt.Fprintf(w, "  Keep Query:\t%t\n", v.GetBool("audit.keep_query"))
	fmt.Fprintf(w, "  Save HTML:\t%t (limit %d)\n", v.GetBool("audit.save_html"), v.GetInt("audit.save_html_limit"))
	fmt.Fprintf(w, "  Render PDF:\t%t\n", v.GetBool("audit.pdf"))
	return w.Flush()
}

func runConfigureList(cmd *cobra.Command, args []string) error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		fmt.Println("No configuration profiles found. Run `sitelynx configure init` to create one.")
		return nil
	}
	if err != nil {
		return err
	}

	found := false
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		fmt.Println(strings.TrimSuffix(e.Name(), ".yaml"))
		found = true
	}
	if !found {
		fmt.Println("No configuration profiles found. Run `sitelynx configure init` to create one.")
	}
	return nil
}

func runConfigureSet(cmd *cobra.Command, args []string) error {
	profile := viper.GetString("configure.profile")
	key, rawValue := args[0], args[1]

	v, err := loadProfile(profile)
	if err != nil {
		return fmt.Errorf("failed to load profile %s: %w", profile, err)
	}

	v.Set(key, parseConfigValue(key, rawValue))

	dir, err := configDir()
	if err != nil {
		return err
	}
	configFile := filepath.Join(dir, profile+".yaml")
	if err := writeYAMLFile(configFile, v.AllSettings()); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	logrus.Infof("Set %s = %v in profile %s", key, v.Get(key), profile)
	return nil
}

func runConfigureGet(cmd *cobra.Command, args []string) error {
	profile := viper.GetString("configure.profile")

	v, err := loadProfile(profile)
	if err != nil {
		return fmt.Errorf("failed to load profile %s: %w", profile, err)
	}

	value := v.Get(args[0])
	if value == nil {
		return fmt.Errorf("key %q not set in profile %s", args[0], profile)
	}
	fmt.Printf("%v\n", value)
	return nil
}

func loadProfile(profile string) (*viper.Viper, error) {
	dir, err := configDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, profile+".yaml"))
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			// New profile starts from defaults.
			for key, value := range defaultProfileConfig() {
				v.SetDefault(key, value)
			}
			return v, nil
		}
		return nil, err
	}
	return v, nil
}

func parseConfigValue(key, raw string) interface{} {
	lower := strings.ToLower(key)
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "delay") ||
		strings.Contains(lower, "retention") || strings.Contains(lower, "every") {
		if d, err := time.ParseDuration(raw); err == nil {
			return d.String()
		}
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return raw
}

func writeYAMLFile(path string, data map[string]interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func confirmOverwrite() (bool, error) {
	fmt.Print("Overwrite existing configuration? [y/N]: ")
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}
