package core

type (
	CategoryAmount struct {
		Name   string `json:"name"`
		Amount Money  `json:"amount"`
		Count  int    `json:"count"`
	}

	// MonthOverview aggregates confirmed transactions of one month.
	// Pending instances never contribute.
	MonthOverview struct {
		Year                    int              `json:"year"`
		Month                   int              `json:"month"`
		TotalSpent              Money            `json:"totalSpent"`
		TotalIncome             Money            `json:"totalIncome"`
		NetBalance              Money            `json:"netBalance"`
		TransactionCount        int              `json:"transactionCount"`
		AverageExpense          Money            `json:"averageExpense"`
		LargestExpense          *Transaction     `json:"largestExpense,omitempty"`
		MostCommonCategory      string           `json:"mostCommonCategory,omitempty"`
		HighestSpendingCategory string           `json:"highestSpendingCategory,omitempty"`
		TotalYearSpending       Money            `json:"totalYearSpending"`
		ByCategory              []CategoryAmount `json:"byCategory"`
		PendingCount            int              `json:"pendingCount"`
	}
)
