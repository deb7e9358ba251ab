package cmd

import (
	"fmt"

	"jason/internal/exif"
	"jason/pkg/api"
	"jason/pkg/jason"

	"github.com/spf13/cobra"
)

// addSubmitFlags registers the options shared by process, submit and convert.
func addSubmitFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("label", "l", "", "label attached to the process")
	flags.String("dynamics", string(api.DynamicsDynamic), "rover dynamics: static or dynamic")
	flags.StringP("strategy", "s", string(api.StrategyAuto), "force a strategy: auto, PPP, PPK or SPP")
	flags.Float64SliceP("base_position", "p", nil, "base station position as lat,lon,height (or -p lat -p lon -p height)")
	flags.StringP("images", "i", "", "folder of pictures whose EXIF data is attached as camera metadata")
}

// addWaitFlags registers the options of commands that poll until completion.
func addWaitFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Duration("timeout", 0, "give up waiting after this long, 0 waits forever (default from config: 60s)")
	flags.Duration("interval", 0, "delay between status polls (default from config: 3s)")
}

// submitRequest builds a request from the positional files and the submit flags.
// The returned cleanup removes the camera metadata bundle generated for -i and
// must be called once the request has been sent.
func submitRequest(cmd *cobra.Command, args []string, processType api.ProcessType) (req jason.SubmitRequest, cleanup func(), err error) {
	cleanup = func() {}
	flags := cmd.Flags()
	label, _ := flags.GetString("label")
	dynamicsFlag, _ := flags.GetString("dynamics")
	strategyFlag, _ := flags.GetString("strategy")
	position, _ := flags.GetFloat64Slice("base_position")
	images, _ := flags.GetString("images")

	req = jason.SubmitRequest{
		Type:      processType,
		RoverFile: args[0],
		Label:     label,
	}
	if len(args) > 1 {
		req.BaseFile = args[1]
	}

	dynamics, err := api.ParseDynamics(dynamicsFlag)
	if err != nil {
		return req, cleanup, fmt.Errorf("%w: %w", jason.ErrValidation, err)
	}
	req.Dynamics = dynamics

	strategy, err := api.ParseStrategy(strategyFlag)
	if err != nil {
		return req, cleanup, fmt.Errorf("%w: %w", jason.ErrValidation, err)
	}
	req.Strategy = strategy

	if flags.Changed("base_position") {
		pos, err := api.NewBasePosition(position)
		if err != nil {
			return req, cleanup, fmt.Errorf("%w: %w", jason.ErrValidation, err)
		}
		req.BasePosition = pos
	}

	if images != "" {
		path, remove, err := exif.New(current.log).BuildTempMetadataFile(images)
		if err != nil {
			return req, cleanup, err
		}
		req.CameraMetadataFile = path
		cleanup = remove
	}

	return req, cleanup, nil
}
