// Command klmctl changes the keyboard lighting through a running klmd.
package main

import (
	"codeberg.org/miketth/klmd/pkg/klm"
	"codeberg.org/miketth/klmd/pkg/klmclient"
	"context"
	"fmt"
	"github.com/alecthomas/kong"
	"os"
	"strconv"
	"strings"
	"time"
)

type CLI struct {
	Socket  string        `help:"Path to the klmd socket." env:"KLMD_SOCKET" default:"/run/klmd.sock"`
	Timeout time.Duration `help:"How long to wait for klmd." default:"5s"`

	Color struct {
		Colors     []string `arg:"" help:"Colors as #rrggbb or r,g,b. More than one color selects the whole sequence."`
		Brightness int      `short:"b" default:"-1" help:"Brightness to apply along with the colors."`
	} `cmd:"" help:"Set a steady color, or the color sequence for animated modes."`

	Mode struct {
		Mode  string `arg:"" enum:"off,steady,breathing,colorshift" help:"One of off, steady, breathing, colorshift."`
		Speed int    `short:"s" default:"-1" help:"Animation speed."`
	} `cmd:"" help:"Select the lighting mode."`

	Brightness struct {
		Level uint8 `arg:"" help:"Brightness level (0-255, clamped by the device)."`
	} `cmd:"" help:"Set the brightness."`

	Speed struct {
		Level uint8 `arg:"" help:"Animation speed (0-255, clamped by the device)."`
	} `cmd:"" help:"Set the animation speed."`

	On  struct{} `cmd:"" help:"Switch the backlight on."`
	Off struct{} `cmd:"" help:"Switch the backlight off."`

	Toggle struct{} `cmd:"" help:"Toggle the backlight."`

	Modes struct{} `cmd:"" help:"List the modes the keyboard supports."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("klmctl"),
		kong.Description("Control keyboard lighting through klmd."),
		kong.UsageOnError(),
	)

	if err := run(ctx.Command(), &cli); err != nil {
		fmt.Fprintf(os.Stderr, "klmctl: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, cli *CLI) error {
	req, err := buildRequest(command, cli)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cli.Timeout)
	defer cancel()

	res, err := klmclient.New(cli.Socket, cli.Timeout).Commit(ctx, req)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}

	if command == "modes" {
		for _, m := range res.Modes() {
			fmt.Println(m)
		}
	}

	return nil
}

func buildRequest(command string, cli *CLI) (*klmclient.Request, error) {
	req := klmclient.NewRequest()

	switch command {
	case "color <colors>":
		colors := make([]klm.RGB, 0, len(cli.Color.Colors))
		for _, s := range cli.Color.Colors {
			c, err := parseColor(s)
			if err != nil {
				return nil, err
			}
			colors = append(colors, c)
		}
		if len(colors) == 1 {
			req.SetColor(colors[0])
		} else {
			req.SetColors(colors...)
		}
		if cli.Color.Brightness >= 0 {
			b, err := byteArg("brightness", cli.Color.Brightness)
			if err != nil {
				return nil, err
			}
			req.SetBrightness(b)
		}
	case "mode <mode>":
		mode, err := klm.ParseMode(cli.Mode.Mode)
		if err != nil {
			return nil, err
		}
		if cli.Mode.Speed >= 0 {
			speed, err := byteArg("speed", cli.Mode.Speed)
			if err != nil {
				return nil, err
			}
			req.SetSpeed(speed)
		}
		if mode != klm.ModeOff {
			req.SetPower(true)
		}
		req.SetMode(mode)
	case "brightness <level>":
		req.SetBrightness(cli.Brightness.Level)
	case "speed <level>":
		req.SetSpeed(cli.Speed.Level)
	case "on":
		req.SetPower(true)
	case "off":
		req.SetPower(false)
	case "toggle":
		req.TogglePower()
	case "modes":
		req.RequestModes()
	default:
		return nil, fmt.Errorf("unknown command %q", command)
	}

	return req, nil
}

// parseColor accepts #rrggbb, rrggbb and r,g,b.
func parseColor(s string) (klm.RGB, error) {
	s = strings.TrimSpace(s)

	if strings.Contains(s, ",") {
		var r, g, b uint8
		if _, err := fmt.Sscanf(s, "%d,%d,%d", &r, &g, &b); err != nil {
			return klm.RGB{}, fmt.Errorf("parse color %q: %w", s, err)
		}
		return klm.RGB{R: r, G: g, B: b}, nil
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return klm.RGB{}, fmt.Errorf("parse color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return klm.RGB{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return klm.RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func byteArg(name string, v int) (uint8, error) {
	if v > 255 {
		return 0, fmt.Errorf("%s %d is out of range 0-255", name, v)
	}
	return uint8(v), nil
}
