package mines

import "github.com/shopspring/decimal"

// multiplierTable is the payout multiplier per chosen mine count, indexed
// by safe tiles revealed minus one.
var multiplierTable = map[int][]string{
	1:  {"1.03", "1.07", "1.12", "1.17", "1.23", "1.30", "1.37", "1.45", "1.54", "1.64", "1.76", "1.89", "2.05", "2.23", "2.46", "2.74", "3.08", "3.52", "4.10", "4.93", "6.16", "8.21", "12.31", "24.63"},
	2:  {"1.07", "1.17", "1.28", "1.41", "1.56", "1.73", "1.92", "2.14", "2.40", "2.69", "3.05", "3.48", "4.00", "4.65", "5.46", "6.50", "7.84", "9.62", "12.07", "15.50", "20.53", "28.25", "41.29"},
	3:  {"1.12", "1.25", "1.39", "1.56", "1.75", "1.98", "2.24", "2.56", "2.94", "3.40", "3.96", "4.66", "5.54", "6.67", "8.16", "10.16", "12.91", "16.81", "22.55", "31.32", "45.42", "70.38"},
	4:  {"1.18", "1.35", "1.53", "1.74", "1.98", "2.26", "2.60", "3.01", "3.52", "4.14", "4.92", "5.91", "7.18", "8.85", "11.06", "14.13", "18.53", "25.14", "35.37", "52.28", "83.54"},
	5:  {"1.23", "1.45", "1.67", "1.93", "2.23", "2.58", "3.01", "3.53", "4.18", "4.99", "6.03", "7.38", "9.17", "11.57", "14.89", "19.62", "26.60", "37.42", "55.62", "90.09"},
	6:  {"1.30", "1.56", "1.85", "2.19", "2.58", "3.05", "3.62", "4.32", "5.18", "6.25", "7.60", "9.33", "11.57", "14.53", "18.53", "24.13", "32.19", "44.06", "62.50", "92.59"},
	7:  {"1.37", "1.67", "2.03", "2.46", "2.97", "3.58", "4.32", "5.23", "6.37", "7.80", "9.62", "11.96", "15.03", "19.18", "24.90", "33.01", "45.05", "63.49", "92.59"},
	8:  {"1.45", "1.80", "2.23", "2.74", "3.36", "4.10", "5.00", "6.13", "7.55", "9.33", "11.64", "14.64", "18.64", "24.13", "31.75", "42.68", "58.82", "83.33"},
	9:  {"1.54", "1.93", "2.46", "3.05", "3.77", "4.65", "5.76", "7.14", "8.85", "11.06", "13.89", "17.54", "22.55", "29.41", "39.06", "52.91", "73.53"},
	10: {"1.64", "2.08", "2.69", "3.40", "4.23", "5.26", "6.58", "8.20", "10.28", "12.94", "16.39", "20.83", "26.79", "35.09", "46.73", "63.49"},
	11: {"1.76", "2.25", "2.94", "3.77", "4.76", "5.95", "7.46", "9.33", "11.76", "14.89", "18.87", "24.13", "31.25", "41.10", "55.56"},
	12: {"1.89", "2.46", "3.23", "4.18", "5.32", "6.71", "8.47", "10.64", "13.51", "17.24", "22.06", "28.57", "37.31", "49.50"},
	13: {"2.05", "2.69", "3.57", "4.65", "5.95", "7.55", "9.62", "12.19", "15.50", "19.84", "25.64", "33.33", "43.86"},
	14: {"2.23", "2.94", "3.96", "5.18", "6.67", "8.47", "10.87", "13.89", "17.86", "23.08", "30.03", "39.47"},
	15: {"2.46", "3.23", "4.41", "5.76", "7.46", "9.62", "12.50", "16.13", "20.83", "27.17", "35.71"},
	16: {"2.74", "3.57", "4.92", "6.45", "8.47", "11.06", "14.53", "19.05", "25.00", "33.33"},
	17: {"3.08", "4.00", "5.54", "7.30", "9.62", "12.82", "17.24", "23.26", "31.58"},
	18: {"3.52", "4.55", "6.25", "8.33", "11.11", "15.15", "20.83", "28.99"},
	19: {"4.10", "5.26", "7.14", "9.62", "13.16", "18.18", "25.64"},
	20: {"4.93", "6.25", "8.47", "11.76", "16.67", "23.81"},
	21: {"6.16", "7.69", "10.64", "15.38", "23.08"},
	22: {"8.21", "10.00", "14.29", "22.22"},
	23: {"12.31", "15.38", "25.00"},
	24: {"24.63"},
}

var multipliers = func() map[int][]decimal.Decimal {
	out := make(map[int][]decimal.Decimal, len(multiplierTable))
	for m, row := range multiplierTable {
		ds := make([]decimal.Decimal, len(row))
		for i, s := range row {
			ds[i] = decimal.RequireFromString(s)
		}
		out[m] = ds
	}
	return out
}()

// Multiplier returns the multiplier after safe reveals with m chosen mines.
// Reveals past the end of the row keep the last value.
func Multiplier(m, safe int) decimal.Decimal {
	row := multipliers[m]
	if safe <= 0 || len(row) == 0 {
		return decimal.Zero
	}
	return row[min(safe-1, len(row)-1)]
}
