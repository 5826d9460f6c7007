package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/attention/pkg/models"
)

// completeItemIDs lists the ids of the currently ranked items, with their
// titles as descriptions. It ranks with the configured settings.
func completeItemIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if Engine == nil {
		return completeSourceTypes(cmd, args, toComplete)
	}

	result, err := Engine.Rank(commandContext(cmd), priorityConfig())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var ids []string
	for _, item := range result.Items {
		if toComplete == "" || strings.HasPrefix(item.ID, toComplete) {
			ids = append(ids, item.ID+"\t"+item.Title)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeSourceTypes lists the known source types.
func completeSourceTypes(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var types []string
	for _, st := range models.AllSourceTypes {
		if strings.HasPrefix(string(st), toComplete) {
			types = append(types, string(st)+"\t"+st.Label())
		}
	}
	return types, cobra.ShellCompDirectiveNoFileComp
}
