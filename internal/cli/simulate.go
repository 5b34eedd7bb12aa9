package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var simulateRate float64

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次汇率评估并在越界时触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateRate <= 0 {
			return errors.New("--rate 必须大于 0")
		}

		return getApp().SimulateAlert(cmd.Context(), decimal.NewFromFloat(simulateRate))
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateRate, "rate", 0, "模拟的池子汇率 (quote/base)")
}
