package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zapflow/zapflow/model"
)

func TestSaveExecutionConversationIndex(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"running execution is indexed by conversation": func(t *testing.T) {
			store := NewStore()
			require.NoError(t, store.SaveExecution(&model.FlowExecution{
				Id: "e1", ConversationId: "c1", Status: model.EXECUTION_RUNNING,
			}))
			found, err := store.FindRunningByConversation("c1")
			require.NoError(t, err)
			require.NotNil(t, found)
			require.Equal(t, "e1", found.Id)
		},
		"terminal save drops its own index entry": func(t *testing.T) {
			store := NewStore()
			require.NoError(t, store.SaveExecution(&model.FlowExecution{
				Id: "e1", ConversationId: "c1", Status: model.EXECUTION_RUNNING,
			}))
			require.NoError(t, store.SaveExecution(&model.FlowExecution{
				Id: "e1", ConversationId: "c1", Status: model.EXECUTION_COMPLETED,
			}))
			found, err := store.FindRunningByConversation("c1")
			require.NoError(t, err)
			require.Nil(t, found)
		},
		"stale terminal save keeps a newer running execution indexed": func(t *testing.T) {
			store := NewStore()
			require.NoError(t, store.SaveExecution(&model.FlowExecution{
				Id: "e1", ConversationId: "c1", Status: model.EXECUTION_RUNNING,
			}))
			require.NoError(t, store.SaveExecution(&model.FlowExecution{
				Id: "e2", ConversationId: "c1", Status: model.EXECUTION_RUNNING,
			}))
			require.NoError(t, store.SaveExecution(&model.FlowExecution{
				Id: "e1", ConversationId: "c1", Status: model.EXECUTION_FAILED,
			}))
			found, err := store.FindRunningByConversation("c1")
			require.NoError(t, err)
			require.NotNil(t, found)
			require.Equal(t, "e2", found.Id)
		},
	} {
		t.Run(scenario, fn)
	}
}
