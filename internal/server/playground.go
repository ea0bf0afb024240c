package server

var playgroundPage = []byte(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="user-scalable=no, initial-scale=1.0, minimum-scale=1.0, maximum-scale=1.0, minimal-ui" />
  <title>GraphQL Playground</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/graphql-playground-react/build/static/css/index.css" />
  <link rel="shortcut icon" href="https://cdn.jsdelivr.net/npm/graphql-playground-react/build/favicon.png" />
  <script src="https://cdn.jsdelivr.net/npm/graphql-playground-react/build/static/js/middleware.js"></script>
</head>
<body>
  <div id="root"></div>
  <script>
    window.addEventListener('load', function () {
      var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
      GraphQLPlayground.init(document.getElementById('root'), {
        endpoint: location.pathname,
        subscriptionEndpoint: proto + location.host + location.pathname,
      });
    });
  </script>
</body>
</html>
`)
