package main

import (
	"fmt"
	"os"

	"holders-api/internal/features/charts"
	"holders-api/internal/store"
)

// go run etc/tools/test_chart.go [state.json]
// writes etc/charts/distribution_chart.png
func main() {
	path := "data/holders.json"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	fmt.Printf("Generating distribution chart from %s...\n", path)

	st, err := store.Open(store.Options{Path: path})
	if err != nil {
		fmt.Printf("Error opening state: %v\n", err)
		os.Exit(1)
	}

	meta := st.Metadata()
	dist := store.ComputeDistribution(st.AllWallets())
	out := "etc/charts/distribution_chart.png"
	if err := charts.SaveDistributionChart(out, meta.TokenName+" holders", dist); err != nil {
		fmt.Printf("Error generating chart: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Chart generated successfully: %s\n", out)
	fmt.Println("Open the file to see the result!")
}
