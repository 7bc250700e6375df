package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kerala-agrisage/agrisage/internal/core"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show your profile, or update it with flags",
	RunE:  runProfile,
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show today's usage, badges and recent activity",
	RunE:  runDashboard,
}

var weatherCmd = &cobra.Command{
	Use:   "weather [location]",
	Short: "Current weather and 5-day forecast (defaults to your profile location)",
	RunE:  runWeather,
}

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Reference market prices",
	RunE:  runPrices,
}

var (
	profileUpdate core.ProfileUpdate
	priceCategory string
)

func init() {
	profileCmd.Flags().StringVar(&profileUpdate.FullName, "name", "", "Full name")
	profileCmd.Flags().StringVar(&profileUpdate.Phone, "phone", "", "Phone number")
	profileCmd.Flags().StringVar(&profileUpdate.Location, "location", "", "Farm location")
	profileCmd.Flags().StringVar(&profileUpdate.PrimaryCrop, "crop", "", "Primary crop")

	pricesCmd.Flags().StringVar(&priceCategory, "category", "", "Only show one category, e.g. Spice")

	rootCmd.AddCommand(profileCmd, dashboardCmd, weatherCmd, pricesCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}
	p, err := c.Profile(ctx)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("name") || flags.Changed("phone") || flags.Changed("location") || flags.Changed("crop") {
		// Unset flags keep their saved values.
		u := core.ProfileUpdate{FullName: p.FullName, Phone: p.Phone, Location: p.Location, PrimaryCrop: p.PrimaryCrop}
		if flags.Changed("name") {
			u.FullName = profileUpdate.FullName
		}
		if flags.Changed("phone") {
			u.Phone = profileUpdate.Phone
		}
		if flags.Changed("location") {
			u.Location = profileUpdate.Location
		}
		if flags.Changed("crop") {
			u.PrimaryCrop = profileUpdate.PrimaryCrop
		}
		if p, err = c.UpdateProfile(ctx, u); err != nil {
			return err
		}
		printf(cmd, "Profile updated\n\n")
	}

	email := ""
	if s := c.Session(); s != nil && s.User != nil {
		email = s.User.Email
	}
	printf(cmd, "Name:     %s\nEmail:    %s\nPhone:    %s\nLocation: %s\nCrop:     %s\n",
		p.FullName, email, p.Phone, p.Location, p.PrimaryCrop)
	return nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}
	d, err := c.Dashboard(ctx)
	if err != nil {
		return err
	}

	s := d.Stats
	printf(cmd, "Queries today:    %d/%d\nImages analysed:  %d\nRisk assessments: %d\nBadges:           %d/%d\n\n",
		s.QueriesToday, s.QueriesLimit, s.ImagesAnalyzed, s.RiskAssessments, s.BadgesEarned, s.TotalBadges)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, b := range d.Badges {
		mark := " "
		if b.Earned {
			mark = "✓"
		}
		fmt.Fprintf(w, "%s %s %s\t%d/%d\t%s\n", mark, b.Icon, b.Name, min(b.Progress, b.Target), b.Target, b.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(d.RecentActivity) > 0 {
		printf(cmd, "\nRecent activity:\n")
		for _, a := range d.RecentActivity {
			printf(cmd, "  %s  %-6s %s\n", a.At.Local().Format("02 Jan 15:04"), a.Type, a.Content)
		}
	}
	return nil
}

func runWeather(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}

	location := strings.Join(args, " ")
	if location == "" {
		p, err := c.Profile(ctx)
		if err != nil {
			return err
		}
		location = p.Location
	}
	if strings.TrimSpace(location) == "" {
		return errors.New("no location given and none saved in your profile")
	}

	r, err := c.Weather(ctx, location)
	if err != nil {
		return err
	}
	cur := r.Current
	printf(cmd, "%s, %s\n%s, %.1f°C, humidity %.0f%%, wind %.1f km/h\n\n",
		r.Location, r.Country, cur.Condition, cur.Temperature, cur.Humidity, cur.WindSpeed)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, f := range r.Forecast {
		fmt.Fprintf(w, "%s\t%s\t%.0f°/%.0f°\train %d%%\n", f.Day, f.Condition, f.TempMax, f.TempMin, f.RainChance)
	}
	return w.Flush()
}

func runPrices(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c, err := newClient()
	if err != nil {
		return err
	}
	prices, err := c.MarketPrices(ctx, priceCategory)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Updated %s\n", prices.Updated)
	for _, p := range prices.Items {
		fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\n", p.Icon, p.Name, p.Display(), p.ChangeLabel(), p.Location)
	}
	return w.Flush()
}
