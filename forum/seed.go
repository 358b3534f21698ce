package forum

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultCategories are the forum boards the site starts with
var DefaultCategories = []Category{
	{Slug: "windows", Name: "Windows", Desc: "Windows troubleshooting, repairs, and optimization", Icon: "Monitor", Order: 1},
	{Slug: "macos", Name: "macOS", Desc: "Mac troubleshooting and repairs", Icon: "Apple", Order: 2},
	{Slug: "linux", Name: "Linux", Desc: "Linux distributions and troubleshooting", Icon: "Terminal", Order: 3},
	{Slug: "networking", Name: "Networking", Desc: "Network issues, Wi-Fi, DNS, and connectivity", Icon: "Network", Order: 4},
	{Slug: "storage", Name: "Storage & Drives", Desc: "Hard drives, SSDs, disk errors, and data recovery", Icon: "HardDrive", Order: 5},
	{Slug: "laptops", Name: "Laptops", Desc: "Laptop-specific repairs and issues", Icon: "Laptop", Order: 6},
	{Slug: "peripherals", Name: "Peripherals", Desc: "Keyboards, mice, monitors, and other devices", Icon: "Usb", Order: 7},
	{Slug: "build-upgrade", Name: "Build & Upgrade", Desc: "PC building, component upgrades, and compatibility", Icon: "Cpu", Order: 8},
	{Slug: "mobile", Name: "Mobile Devices", Desc: "Smartphones and tablets", Icon: "Smartphone", Order: 9},
	{Slug: "tool-feedback", Name: "Tool Feedback", Desc: "Suggestions and bug reports for RepairLoader tools", Icon: "Wrench", Order: 10},
}

var DefaultTags = []Tag{
	{Slug: "boot-issue", Name: "Boot Issue"},
	{Slug: "bsod", Name: "BSOD"},
	{Slug: "performance", Name: "Performance"},
	{Slug: "drivers", Name: "Drivers"},
	{Slug: "wifi", Name: "Wi-Fi"},
	{Slug: "ethernet", Name: "Ethernet"},
	{Slug: "dns", Name: "DNS"},
	{Slug: "ssd", Name: "SSD"},
	{Slug: "hdd", Name: "HDD"},
	{Slug: "nvme", Name: "NVMe"},
	{Slug: "data-recovery", Name: "Data Recovery"},
	{Slug: "disk-error", Name: "Disk Error"},
	{Slug: "gpu", Name: "GPU"},
	{Slug: "cpu", Name: "CPU"},
	{Slug: "ram", Name: "RAM"},
	{Slug: "motherboard", Name: "Motherboard"},
	{Slug: "power-supply", Name: "Power Supply"},
	{Slug: "overheating", Name: "Overheating"},
	{Slug: "virus", Name: "Virus/Malware"},
	{Slug: "update-issue", Name: "Update Issue"},
	{Slug: "activation", Name: "Activation"},
	{Slug: "battery", Name: "Battery"},
	{Slug: "screen", Name: "Screen"},
	{Slug: "keyboard", Name: "Keyboard"},
	{Slug: "trackpad", Name: "Trackpad"},
	{Slug: "audio", Name: "Audio"},
	{Slug: "usb", Name: "USB"},
	{Slug: "windows-11", Name: "Windows 11"},
	{Slug: "windows-10", Name: "Windows 10"},
	{Slug: "ubuntu", Name: "Ubuntu"},
	{Slug: "macos-sonoma", Name: "macOS Sonoma"},
	{Slug: "solved", Name: "Solved"},
}

var DefaultTools = []Tool{
	{Slug: "system-info", Name: "System Information", Desc: "Detect your system specs, browser capabilities, and hardware information instantly in your browser.", Category: "diagnostics", Icon: "Info", Order: 1},
	{Slug: "network-doctor", Name: "Network Doctor", Desc: "Test your internet connection, DNS resolution, and network connectivity to diagnose connection issues.", Category: "diagnostics", Icon: "Network", Order: 2},
	{Slug: "disk-health", Name: "Disk Health Check", Desc: "Learn how to check your drive's S.M.A.R.T. status and health indicators to prevent data loss.", Category: "diagnostics", Icon: "HardDrive", Order: 3},
	{Slug: "port-checker", Name: "Port Checker", Desc: "Test if specific ports are open and reachable on your network or firewall.", Category: "networking", Icon: "Wifi", Order: 4},
	{Slug: "bootable-usb", Name: "Bootable USB Guide", Desc: "Step-by-step guide to creating bootable Windows, Linux, or recovery USB drives with Rufus and Ventoy.", Category: "tools", Icon: "Usb", Order: 5},
	{Slug: "windows-troubleshooter", Name: "Windows Troubleshooter", Desc: "Interactive decision tree to diagnose and fix common Windows problems with guided steps.", Category: "repair", Icon: "Wrench", Order: 6},
}

// SeedResult counts what Seed wrote
type SeedResult struct {
	Categories int
	Tags       int
	Tools      int
}

// Seed upserts the default categories, tags and tools.  Running it again
// only refreshes the rows.
func Seed(ctx context.Context, store Store) (SeedResult, error) {
	var res SeedResult
	for i := range DefaultCategories {
		c := DefaultCategories[i]
		if err := store.UpsertCategory(ctx, &c); err != nil {
			return res, fmt.Errorf("category %s: %w", c.Slug, err)
		}
		res.Categories++
	}
	slog.Info("seeded categories", "count", res.Categories)

	for i := range DefaultTags {
		t := DefaultTags[i]
		if err := store.UpsertTag(ctx, &t); err != nil {
			return res, fmt.Errorf("tag %s: %w", t.Slug, err)
		}
		res.Tags++
	}
	slog.Info("seeded tags", "count", res.Tags)

	for i := range DefaultTools {
		t := DefaultTools[i]
		if err := store.UpsertTool(ctx, &t); err != nil {
			return res, fmt.Errorf("tool %s: %w", t.Slug, err)
		}
		res.Tools++
	}
	slog.Info("seeded tools", "count", res.Tools)
	return res, nil
}
